package evo

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPopulation   = errors.New("population empty")
	ErrContractViolation = errors.New("chromosome contract violation")
	ErrInvalidConfig     = errors.New("invalid engine config")
)

// ContractViolationError reports the population slot whose chromosome does not
// honour the Chromosome contract.
type ContractViolationError struct {
	Index  int
	Reason string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("%s: slot %d: %s", ErrContractViolation, e.Index, e.Reason)
}

func (e *ContractViolationError) Is(target error) bool {
	return target == ErrContractViolation
}
