// Package password provides the one-way hash used to store member
// passwords. The algorithm is chosen by configuration.
package password

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/memberauth/internal/common"
)

// Hasher hashes plaintext passwords and checks candidates against a stored hash.
type Hasher interface {
	// Hash returns an encoded hash of plain.
	Hash(plain string) (string, error)

	// Compare returns (true, nil) on match, (false, nil) on mismatch and an
	// error only when the stored hash cannot be interpreted.
	Compare(hash, plain string) (bool, error)
}

// New returns the Hasher for algorithm ("bcrypt" or "argon2id"). cost is the
// bcrypt cost or the argon2id iteration count; zero selects the default.
func New(algorithm string, cost int) (Hasher, error) {
	switch strings.ToLower(algorithm) {
	case "", "bcrypt":
		return NewBcrypt(cost)
	case "argon2id":
		return NewArgon2id(uint32(max(cost, 0))), nil
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownHashingAlgo, algorithm)
	}
}
