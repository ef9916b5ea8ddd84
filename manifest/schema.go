package manifest

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	cueCtx     *cue.Context
	schema     cue.Value
	schemaErr  error

	// cue.Context is not safe for concurrent use.
	validateMu sync.Mutex
)

func loadSchema() (cue.Value, error) {
	schemaOnce.Do(func() {
		cueCtx = cuecontext.New()
		v := cueCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("manifest schema: %w", err)
			return
		}
		schema = v.LookupPath(cue.ParsePath("#Manifest"))
		schemaErr = schema.Err()
	})
	return schema, schemaErr
}

// Validate checks decoded manifest data against the embedded schema.
// Unknown sections and keys are rejected.
func Validate(raw map[string]interface{}) error {
	s, err := loadSchema()
	if err != nil {
		return err
	}
	validateMu.Lock()
	defer validateMu.Unlock()
	v := cueCtx.Encode(raw)
	if err := v.Err(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	if err := s.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	return nil
}
