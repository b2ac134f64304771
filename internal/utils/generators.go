package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const codeSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateOrderCode returns a public order code of the form
// OUW<unix-millis><5 random uppercase chars>. The random suffix keeps two
// orders created in the same millisecond distinct.
func GenerateOrderCode() string {
	suffix := make([]byte, 5)
	for i := range suffix {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeSuffixAlphabet))))
		suffix[i] = codeSuffixAlphabet[n.Int64()]
	}
	return fmt.Sprintf("OUW%d%s", time.Now().UnixMilli(), suffix)
}
