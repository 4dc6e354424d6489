// Package adgen turns a weather alert and a business profile into ad copy.
// It defines the Generator (prompting, output normalization, placeholder
// fallback), the Provider interface implemented by LLM backends, and the
// request/result models exchanged with the HTTP layer.
package adgen
