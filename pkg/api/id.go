package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	recordIDPrefix = "rec_"
)

var recordIDPattern = regexp.MustCompile(`^rec_[a-zA-Z0-9]{24}$`)

// NewRecordID generates an audit record ID with the "rec_" prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewRecordID() string {
	return recordIDPrefix + randomAlphanumeric(idLength)
}

// ValidateRecordID reports whether id was produced by NewRecordID.
func ValidateRecordID(id string) bool {
	return recordIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
