package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint возвращает SHA256 от данных в hex.
// Сервер хранит его рядом с idempotency key, чтобы отличить повтор
// того же запроса от повторного использования ключа с другим телом.
func Fingerprint(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
