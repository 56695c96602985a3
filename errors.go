package evs

import (
	"bytes"
	"fmt"
)

// SolveError is the composite interface for all failures surfaced at the
// Session boundary.
type SolveError interface {
	error
	Children() []error
}

type traceError interface {
	traceString() string
}

// UnsatisfiableFailure indicates that propagation or group solving proved no
// admissible version exists for Name given the edges known so far. It is
// distinct from "not yet enough information" - an unsaturated session is not
// an error.
type UnsatisfiableFailure struct {
	// Name is the project or dependency whose candidate set emptied.
	Name ProjectRoot
	// culprits are the edges whose intersection emptied the set, when known.
	culprits []dependency
}

func (e *UnsatisfiableFailure) Error() string {
	if len(e.culprits) == 0 {
		return fmt.Sprintf("no version of %s can satisfy all requirements placed on it", e.Name)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "no version of %s can satisfy all requirements placed on it:", e.Name)
	for _, d := range e.culprits {
		fmt.Fprintf(&buf, "\n\t%s from %s at %s", d.rng, d.depender, d.version)
	}
	return buf.String()
}

func (e *UnsatisfiableFailure) Children() []error {
	return nil
}

func (e *UnsatisfiableFailure) traceString() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s unsatisfiable:\n", e.Name)
	for _, d := range e.culprits {
		fmt.Fprintf(&buf, "  %s from %s at %s\n", d.rng, d.depender, d.version)
	}
	return buf.String()
}

// ContractViolationFailure indicates that an ingested registry response did
// not satisfy the low/high edge guarantees for the request that produced it.
// Downstream correctness depends on those guarantees, so violations are
// surfaced rather than silently trusted.
type ContractViolationFailure struct {
	Request RegistryRequest
	prob    string
}

func (e *ContractViolationFailure) Error() string {
	return fmt.Sprintf("registry response for %s edge of %s (%s) violates contract: %s",
		e.Request.Kind, e.Request.Root, e.Request.Range, e.prob)
}

func (e *ContractViolationFailure) Children() []error {
	return nil
}

// BadRangeFailure indicates a requirement whose bounds admit no version at
// all. Such requirements are rejected at declaration time and never reach the
// solver.
type BadRangeFailure struct {
	Lower, Upper Version
}

func (e *BadRangeFailure) Error() string {
	return fmt.Sprintf("range bounds are malformed: lower %s does not precede upper %s", e.Lower, e.Upper)
}

func (e *BadRangeFailure) Children() []error {
	return nil
}
