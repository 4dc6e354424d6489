package docstore

// OpKind is the kind of a batched write.
type OpKind int

const (
	OpSet OpKind = iota
	OpUpdate
	OpDelete
)

// Op is a single write in a batch.
type Op struct {
	Kind OpKind
	Path string
	Data Data
}

// Batch collects writes that Commit applies all-or-nothing.
type Batch struct {
	Ops []Op
}

// NewBatch returns an empty batch.
func NewBatch() *Batch { return &Batch{} }

// Set queues a full document write.
func (b *Batch) Set(path string, data Data) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpSet, Path: path, Data: data})
	return b
}

// Update queues a merge into an existing document.
func (b *Batch) Update(path string, patch Data) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpUpdate, Path: path, Data: patch})
	return b
}

// Delete queues a delete. Deleting a missing document in a batch is not an
// error.
func (b *Batch) Delete(path string) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpDelete, Path: path})
	return b
}

// Len returns the number of queued writes.
func (b *Batch) Len() int { return len(b.Ops) }

// Validate checks every path in the batch.
func (b *Batch) Validate() error {
	for _, op := range b.Ops {
		if _, _, err := Split(op.Path); err != nil {
			return err
		}
	}
	return nil
}
