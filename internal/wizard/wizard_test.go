package wizard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/linnemanlabs/go-core/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/linnemanlabs/breezecue/internal/adgen"
	"github.com/linnemanlabs/breezecue/internal/alert"
	"github.com/linnemanlabs/breezecue/internal/campaign"
	"github.com/linnemanlabs/breezecue/internal/docstore/memstore"
)

type fakeAlerts map[string]alert.Alert

func (f fakeAlerts) Find(id string) (alert.Alert, bool) {
	a, ok := f[id]
	return a, ok
}

type fakeGen struct {
	calls atomic.Int32
	fn    func(n int32, req *adgen.Request) (*adgen.Result, error)
}

func (f *fakeGen) Generate(_ context.Context, req *adgen.Request) (*adgen.Result, error) {
	return f.fn(f.calls.Add(1), req)
}

func result(tag string) *adgen.Result {
	return &adgen.Result{
		Headlines: []string{tag + " one.", tag + " two.", tag + " three."},
		Body:      "Weather Notice: " + tag,
		ImageURL:  "https://picsum.photos/seed/" + tag + "/1200/628",
	}
}

var stormAlert = alert.Alert{
	ID:          "a1",
	Event:       "Winter Storm Warning",
	AreaDesc:    "Erie, NY",
	Severity:    "Severe",
	Description: "Heavy snow expected.",
}

type fixture struct {
	m     *Manager
	clock *clockwork.FakeClock
	gen   *fakeGen
	camps *campaign.Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	gen := &fakeGen{fn: func(int32, *adgen.Request) (*adgen.Result, error) { return result("gen"), nil }}
	camps := campaign.NewService(memstore.New(clock), log.Nop(), campaign.WithClock(clock))
	opts = append([]Option{WithClock(clock)}, opts...)
	m := NewManager(fakeAlerts{"a1": stormAlert}, gen, camps, log.Nop(), opts...)
	return &fixture{m: m, clock: clock, gen: gen, camps: camps}
}

func TestStart_NotFoundIsRecoverable(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	s := f.m.Start(context.Background(), "u1", "missing")
	if s.State != StateNotFound || s.ExitTo != ExitDashboard || s.Alert != nil {
		t.Fatalf("session = %+v", s)
	}

	got, err := f.m.Get("u1", s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != StateNotFound {
		t.Errorf("state = %s", got.State)
	}
	if _, err := f.m.Next("u1", s.ID); !errors.Is(err, ErrInactive) {
		t.Errorf("Next error = %v, want ErrInactive", err)
	}
}

func TestStart_Found(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	s := f.m.Start(context.Background(), "u1", "a1")
	if s.State != StateActive || s.Step != StepPreviewAlert || s.Radius != campaign.DefaultRadius {
		t.Fatalf("session = %+v", s)
	}
	if s.Alert == nil || s.Alert.Event != "Winter Storm Warning" {
		t.Errorf("alert = %+v", s.Alert)
	}
}

func TestGet_OtherUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := f.m.Start(context.Background(), "u1", "a1")
	if _, err := f.m.Get("u2", s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("error = %v", err)
	}
}

func TestNavigation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.m.Start(context.Background(), "u1", "a1").ID

	if _, err := f.m.Back("u1", id); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("Back on first step = %v", err)
	}
	s, err := f.m.Next("u1", id)
	if err != nil || s.Step != StepSetTargeting {
		t.Fatalf("Next = %v, %v", s.Step, err)
	}
	s, _ = f.m.Next("u1", id)
	if s.Step != StepConfirmAndSave {
		t.Fatalf("step = %v", s.Step)
	}
	if _, err := f.m.Next("u1", id); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("Next on last step = %v", err)
	}
	s, _ = f.m.Back("u1", id)
	if s.Step != StepSetTargeting {
		t.Errorf("step after Back = %v", s.Step)
	}
}

func TestGenerate_AppliesContent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	var seen *adgen.Request
	f.gen.fn = func(_ int32, req *adgen.Request) (*adgen.Result, error) {
		seen = req
		return result("storm"), nil
	}
	id := f.m.Start(context.Background(), "u1", "a1").ID

	s, err := f.m.Generate(context.Background(), "u1", id, adgen.UserSettings{CompanyName: "Acme"}, "claude")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if s.Content == nil || s.Content.Headline != "storm one." || len(s.Content.Headlines) != 3 {
		t.Fatalf("content = %+v", s.Content)
	}
	if s.Generating || s.GenError != "" {
		t.Errorf("generating = %v, genError = %q", s.Generating, s.GenError)
	}
	if seen.AlertDetails.Event != "Winter Storm Warning" || seen.UserSettings.CompanyName != "Acme" || seen.Provider != "claude" {
		t.Errorf("request = %+v", seen)
	}
}

func TestGenerate_OnlyFromPreview(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.m.Start(context.Background(), "u1", "a1").ID
	_, _ = f.m.Next("u1", id)

	if _, err := f.m.Generate(context.Background(), "u1", id, adgen.UserSettings{}, ""); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("error = %v, want ErrInvalidStep", err)
	}
	if n := f.gen.calls.Load(); n != 0 {
		t.Errorf("generator called %d times", n)
	}
}

func TestGenerate_FailureAppliesPlaceholders(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.gen.fn = func(int32, *adgen.Request) (*adgen.Result, error) {
		return result("placeholder"), &adgen.GenerationError{Cause: errors.New("provider down")}
	}
	id := f.m.Start(context.Background(), "u1", "a1").ID

	s, err := f.m.Generate(context.Background(), "u1", id, adgen.UserSettings{}, "")
	var ge *adgen.GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("error = %v, want GenerationError", err)
	}
	if s.GenError != adgen.GenericFailure {
		t.Errorf("genError = %q", s.GenError)
	}
	if s.Content == nil || s.Content.Headline != "placeholder one." {
		t.Errorf("content = %+v", s.Content)
	}
}

func TestGenerate_ValidationErrorLeavesContent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.gen.fn = func(int32, *adgen.Request) (*adgen.Result, error) { return nil, adgen.ErrInvalidRequest }
	id := f.m.Start(context.Background(), "u1", "a1").ID

	s, err := f.m.Generate(context.Background(), "u1", id, adgen.UserSettings{}, "bogus")
	if !errors.Is(err, adgen.ErrInvalidRequest) {
		t.Fatalf("error = %v", err)
	}
	if s.Content != nil || s.Generating {
		t.Errorf("session = %+v", s)
	}
}

func TestGenerate_InvalidRequestDoesNotSupersede(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.gen.fn = func(int32, *adgen.Request) (*adgen.Result, error) {
		close(entered)
		<-release
		return result("valid"), nil
	}
	id := f.m.Start(context.Background(), "u1", "a1").ID

	var (
		wg       sync.WaitGroup
		validErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, validErr = f.m.Generate(context.Background(), "u1", id, adgen.UserSettings{}, "claude")
	}()
	<-entered

	s, err := f.m.Generate(context.Background(), "u1", id, adgen.UserSettings{}, "bogus")
	if !errors.Is(err, adgen.ErrInvalidRequest) {
		t.Fatalf("invalid provider error = %v", err)
	}
	if !s.Generating {
		t.Error("rejected request cleared the in-flight generation")
	}

	close(release)
	wg.Wait()
	if validErr != nil {
		t.Fatalf("valid Generate: %v", validErr)
	}
	got, _ := f.m.Get("u1", id)
	if got.Content == nil || got.Content.Headline != "valid one." || got.Generating {
		t.Errorf("content = %+v generating = %v", got.Content, got.Generating)
	}
	if n := f.gen.calls.Load(); n != 1 {
		t.Errorf("generator called %d times, want 1", n)
	}
}

func TestGenerate_ResultAfterSaveDropped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	f.gen.fn = func(n int32, _ *adgen.Request) (*adgen.Result, error) {
		if n == 2 {
			close(entered)
			<-release
			return result("late"), nil
		}
		return result("first"), nil
	}
	id := f.m.Start(ctx, "u1", "a1").ID
	if _, err := f.m.Generate(ctx, "u1", id, adgen.UserSettings{}, ""); err != nil {
		t.Fatal(err)
	}

	var (
		wg      sync.WaitGroup
		lateErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, lateErr = f.m.Generate(ctx, "u1", id, adgen.UserSettings{}, "")
	}()
	<-entered

	_, _ = f.m.Next("u1", id)
	_, _ = f.m.Next("u1", id)
	saved, err := f.m.Save(ctx, "u1", id)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	close(release)
	wg.Wait()
	if !errors.Is(lateErr, ErrInactive) {
		t.Errorf("late result error = %v, want ErrInactive", lateErr)
	}
	got, _ := f.m.Get("u1", id)
	if got.State != StateSaved || got.Content.Headline != "first one." {
		t.Errorf("state = %s headline = %q", got.State, got.Content.Headline)
	}
	c, err := f.camps.Get(ctx, "u1", saved.CampaignID)
	if err != nil {
		t.Fatal(err)
	}
	if c.Copy.Headline != "first one." {
		t.Errorf("campaign headline = %q", c.Copy.Headline)
	}
}

func TestGenerate_LastIssuedWins(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.gen.fn = func(n int32, _ *adgen.Request) (*adgen.Result, error) {
		if n == 1 {
			close(entered)
			<-release
			return result("first"), nil
		}
		return result("second"), nil
	}
	id := f.m.Start(context.Background(), "u1", "a1").ID

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.m.Generate(context.Background(), "u1", id, adgen.UserSettings{}, "")
	}()
	<-entered

	s, err := f.m.Generate(context.Background(), "u1", id, adgen.UserSettings{}, "")
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if s.Content.Headline != "second one." {
		t.Fatalf("headline = %q", s.Content.Headline)
	}

	close(release)
	wg.Wait()
	if !errors.Is(firstErr, ErrSuperseded) {
		t.Errorf("first error = %v, want ErrSuperseded", firstErr)
	}
	got, _ := f.m.Get("u1", id)
	if got.Content.Headline != "second one." || got.Generating {
		t.Errorf("after stale result: headline = %q generating = %v", got.Content.Headline, got.Generating)
	}
}

func TestEditAndRevert(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	id := f.m.Start(ctx, "u1", "a1").ID

	if _, err := f.m.Edit("u1", id, ContentPatch{Body: ptr("x")}); !errors.Is(err, ErrNoContent) {
		t.Fatalf("edit before generate = %v", err)
	}
	if _, err := f.m.Generate(ctx, "u1", id, adgen.UserSettings{}, ""); err != nil {
		t.Fatal(err)
	}

	s, err := f.m.Edit("u1", id, ContentPatch{HeadlineIndex: intPtr(2)})
	if err != nil {
		t.Fatal(err)
	}
	if s.Content.Headline != "gen three." || s.Content.HeadlineIndex != 2 {
		t.Errorf("after select: %+v", s.Content)
	}

	s, err = f.m.Edit("u1", id, ContentPatch{Headline: ptr("Custom line."), Body: ptr("Weather Notice: custom.")})
	if err != nil {
		t.Fatal(err)
	}
	if s.Content.Headline != "Custom line." || s.Content.Headlines[2] != "Custom line." || s.Content.Body != "Weather Notice: custom." {
		t.Errorf("after edit: %+v", s.Content)
	}
	if s.Alert.Description != stormAlert.Description {
		t.Error("alert mutated")
	}

	tests := []struct {
		name string
		p    ContentPatch
	}{
		{"index out of range", ContentPatch{HeadlineIndex: intPtr(3)}},
		{"negative index", ContentPatch{HeadlineIndex: intPtr(-1)}},
		{"empty headline", ContentPatch{Headline: ptr("  ")}},
		{"long headline", ContentPatch{Headline: ptr(string(make([]rune, adgen.MaxHeadlineLen+1)))}},
		{"long body", ContentPatch{Body: ptr(string(make([]rune, adgen.MaxBodyLen+1)))}},
	}
	for _, tt := range tests {
		if _, err := f.m.Edit("u1", id, tt.p); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: error = %v, want ErrInvalidInput", tt.name, err)
		}
	}

	s, err = f.m.Revert("u1", id)
	if err != nil {
		t.Fatal(err)
	}
	if s.Content.Headline != "gen one." || s.Content.Headlines[2] != "gen three." || s.Content.Body != "Weather Notice: gen" {
		t.Errorf("after revert: %+v", s.Content)
	}
}

func TestSetRadius(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.m.Start(context.Background(), "u1", "a1").ID

	for _, r := range []int{0, -1, 51} {
		if _, err := f.m.SetRadius("u1", id, r); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("SetRadius(%d) = %v", r, err)
		}
	}
	s, err := f.m.SetRadius("u1", id, 50)
	if err != nil || s.Radius != 50 {
		t.Errorf("radius = %d, err = %v", s.Radius, err)
	}
}

func TestSave(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	f := newFixture(t, WithHooks(metrics.Hooks()))
	ctx := context.Background()
	id := f.m.Start(ctx, "u1", "a1").ID

	if _, err := f.m.Save(ctx, "u1", id); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("save on preview = %v", err)
	}
	if _, err := f.m.Generate(ctx, "u1", id, adgen.UserSettings{}, ""); err != nil {
		t.Fatal(err)
	}
	_, _ = f.m.Next("u1", id)
	_, _ = f.m.SetRadius("u1", id, 20)
	_, _ = f.m.Next("u1", id)

	s, err := f.m.Save(ctx, "u1", id)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.State != StateSaved || s.ExitTo != ExitCampaigns || s.CampaignID == "" {
		t.Fatalf("session = %+v", s)
	}

	c, err := f.camps.Get(ctx, "u1", s.CampaignID)
	if err != nil {
		t.Fatal(err)
	}
	if c.Radius != 20 || c.Copy.Headline != "gen one." || c.AlertEvent != "Winter Storm Warning" || c.Status != campaign.StatusDraft {
		t.Errorf("campaign = %+v", c)
	}

	if _, err := f.m.Save(ctx, "u1", id); !errors.Is(err, ErrInactive) {
		t.Errorf("second save = %v", err)
	}
	if got := testutil.ToFloat64(metrics.Saves.WithLabelValues("success")); got != 1 {
		t.Errorf("saves = %v", got)
	}
}

func TestSave_WithoutContentRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	id := f.m.Start(ctx, "u1", "a1").ID
	_, _ = f.m.Next("u1", id)
	_, _ = f.m.Next("u1", id)

	s, err := f.m.Save(ctx, "u1", id)
	if !errors.Is(err, campaign.ErrInvalidCampaign) {
		t.Fatalf("error = %v, want ErrInvalidCampaign", err)
	}
	if s.State != StateActive {
		t.Errorf("state = %s", s.State)
	}
	list, _ := f.camps.List(ctx, "u1")
	if len(list) != 0 {
		t.Errorf("campaigns = %d, want 0", len(list))
	}
}

func TestExpiry(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	f := newFixture(t, WithTTL(time.Minute), WithHooks(metrics.Hooks()))
	ctx := context.Background()

	idle := f.m.Start(ctx, "u1", "a1").ID
	busy := f.m.Start(ctx, "u1", "a1").ID

	f.clock.Advance(40 * time.Second)
	if _, err := f.m.Next("u1", busy); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(40 * time.Second)

	if n := f.m.Sweep(); n != 1 {
		t.Errorf("swept = %d, want 1", n)
	}
	if _, err := f.m.Get("u1", idle); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("idle session = %v", err)
	}
	if _, err := f.m.Get("u1", busy); err != nil {
		t.Errorf("busy session = %v", err)
	}

	f.clock.Advance(2 * time.Minute)
	if _, err := f.m.Get("u1", busy); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expired on access = %v", err)
	}
	if got := testutil.ToFloat64(metrics.Expired); got != 2 {
		t.Errorf("expired = %v, want 2", got)
	}
}

func TestRun_SweepsOnTick(t *testing.T) {
	t.Parallel()
	f := newFixture(t, WithTTL(time.Minute))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := f.m.Start(ctx, "u1", "a1").ID
	done := make(chan struct{})
	go func() {
		f.m.Run(ctx, 30*time.Second)
		close(done)
	}()

	if err := f.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(2 * time.Minute)

	deadline := time.After(5 * time.Second)
	for {
		f.m.mu.Lock()
		_, ok := f.m.sessions[id]
		f.m.mu.Unlock()
		if !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("session not swept")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestNewManager_PanicsOnNilDeps(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewManager(nil, &fakeGen{}, &campaign.Service{}, log.Nop())
}

func TestStep_String(t *testing.T) {
	t.Parallel()
	if StepConfirmAndSave.String() != "confirm_and_save" || Step(9).String() != "unknown" {
		t.Error("unexpected step names")
	}
}

func ptr(s string) *string { return &s }
func intPtr(i int) *int    { return &i }
