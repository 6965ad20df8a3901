package persist

import "context"

// KV is a single-scope string store. Get reports ok=false with a nil error for
// absent keys; Delete of an absent key is a no-op.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Split routes sensitive and non-sensitive entries to separate stores. It
// satisfies goSession.CredentialPersistence.
type Split struct {
	Secure KV
	Plain  KV
}

// NewSplit pairs secure and plain.
func NewSplit(secure, plain KV) *Split {
	return &Split{Secure: secure, Plain: plain}
}

func (s *Split) GetSecure(ctx context.Context, key string) (string, bool, error) {
	return s.Secure.Get(ctx, key)
}

func (s *Split) SetSecure(ctx context.Context, key, value string) error {
	return s.Secure.Set(ctx, key, value)
}

func (s *Split) DeleteSecure(ctx context.Context, key string) error {
	return s.Secure.Delete(ctx, key)
}

func (s *Split) GetPlain(ctx context.Context, key string) (string, bool, error) {
	return s.Plain.Get(ctx, key)
}

func (s *Split) SetPlain(ctx context.Context, key, value string) error {
	return s.Plain.Set(ctx, key, value)
}

func (s *Split) DeletePlain(ctx context.Context, key string) error {
	return s.Plain.Delete(ctx, key)
}
