package uuid

import (
	"fmt"

	guuid "github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid"
)

// Generator UUID generator interface
type Generator interface {
	Generate() (string, error)
}

// NanoIDGenerator UUID implementation using NanoID
type NanoIDGenerator struct {
	Length int
}

// RandomGenerator RFC 4122 version 4 UUIDs
type RandomGenerator struct{}

var (
	_ Generator = &NanoIDGenerator{}
	_ Generator = RandomGenerator{}
)

// NewGenerator picks the generator by kind, "nanoid" or "uuid"
func NewGenerator(kind string, length int) (Generator, error) {
	switch kind {
	case "nanoid", "":
		if length < 1 {
			return nil, fmt.Errorf("nanoid length must be positive, got %d", length)
		}
		return &NanoIDGenerator{Length: length}, nil
	case "uuid":
		return RandomGenerator{}, nil
	}
	return nil, fmt.Errorf("unknown ID generator: %s", kind)
}

// Generate .
func (ns *NanoIDGenerator) Generate() (string, error) {
	return gonanoid.Nanoid(ns.Length)
}

// Generate .
func (RandomGenerator) Generate() (string, error) {
	id, err := guuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
