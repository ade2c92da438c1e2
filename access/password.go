package access

import "golang.org/x/crypto/bcrypt"

// Hasher hashes and verifies passwords. Hashes are salted, so equal passwords give distinct hashes.
type Hasher interface {
	Hash(password []byte) ([]byte, error)
	Compare(hash, password []byte) error
}

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password []byte) ([]byte, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword(password, cost)
}

func (BcryptHasher) Compare(hash, password []byte) error {
	return bcrypt.CompareHashAndPassword(hash, password)
}
