package models

import (
	"errors"
	"fmt"
)

// Architecture identifies one of the supported classifier backbones. The set
// is closed: every operation that accepts an Architecture rejects values
// outside it with ErrUnsupportedModel before any training work starts.
type Architecture string

const (
	ArchResNet   Architecture = "resnet"
	ArchAlexNet  Architecture = "alexnet"
	ArchZFNet    Architecture = "zfnet"
	ArchBionnica Architecture = "bionnica"
	ArchBFNet    Architecture = "bfnet"
)

// ErrUnsupportedModel is returned when a requested model identifier is not
// in the closed architecture set.
var ErrUnsupportedModel = errors.New("unsupported model architecture")

// SupportedArchitectures returns the closed set in stable order.
func SupportedArchitectures() []Architecture {
	return []Architecture{ArchResNet, ArchAlexNet, ArchZFNet, ArchBionnica, ArchBFNet}
}

// ParseArchitecture validates a model identifier against the closed set.
func ParseArchitecture(name string) (Architecture, error) {
	arch := Architecture(name)
	for _, known := range SupportedArchitectures() {
		if arch == known {
			return arch, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedModel, name)
}

func (a Architecture) String() string {
	return string(a)
}
