// Package keygen produces raw license secrets and their one-way verification
// hashes. Raw secrets are shown once to the purchaser; only the bcrypt hash
// is stored on the license key.
package keygen

import (
	"crypto/rand"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// alphabet excludes lowercase to keep keys human-readable and unambiguous
// when read aloud or typed from packaging.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Config controls the key format and hashing cost. Salt rounds are explicit
// configuration, not ambient state.
type Config struct {
	Groups     int    // number of character groups, default 4
	GroupLen   int    // characters per group, default 4
	Separator  string // group separator, default "-"
	BcryptCost int    // bcrypt cost for the verification hash
}

func DefaultConfig() Config {
	return Config{Groups: 4, GroupLen: 4, Separator: "-", BcryptCost: bcrypt.DefaultCost}
}

func (c Config) withDefaults() Config {
	if c.Groups <= 0 {
		c.Groups = 4
	}
	if c.GroupLen <= 0 {
		c.GroupLen = 4
	}
	if c.Separator == "" {
		c.Separator = "-"
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		c.BcryptCost = bcrypt.DefaultCost
	}
	return c
}

// Generator produces license secrets. Generations are not globally unique by
// construction; the registry rejects collisions at creation and retries with
// a fresh generation.
type Generator struct {
	cfg Config
}

func New(cfg Config) *Generator {
	return &Generator{cfg: cfg.withDefaults()}
}

// Generate returns a fresh raw secret, e.g. "AB3F-9K2Q-7Z1M-XC44".
func (g *Generator) Generate() (string, error) {
	groups := make([]string, g.cfg.Groups)
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	for i := range groups {
		b.Reset()
		for j := 0; j < g.cfg.GroupLen; j++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			b.WriteByte(alphabet[n.Int64()])
		}
		groups[i] = b.String()
	}
	return strings.Join(groups, g.cfg.Separator), nil
}

// Hash derives the stored verification hash for a raw secret.
func (g *Generator) Hash(raw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(raw), g.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify compares a stored hash with a provided raw secret. bcrypt's
// comparison is constant-time for matching hash parameters.
func Verify(hash, raw string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
	if err == bcrypt.ErrMismatchedHashAndPassword {
		return false, nil
	}
	return err == nil, err
}
