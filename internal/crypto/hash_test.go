package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("update"), []byte(`{"x":1}`))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Fingerprint([]byte("update"), []byte(`{"x":1}`)))

	// Граница между частями учитывается
	assert.NotEqual(t, Fingerprint([]byte("ab"), []byte("c")), Fingerprint([]byte("a"), []byte("bc")))
	assert.NotEqual(t, a, Fingerprint([]byte("create"), []byte(`{"x":1}`)))
}
