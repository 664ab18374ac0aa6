// Package transformation implements the transformation models that can be
// fitted to control points: Helmert, polynomial (order 1 to 3), projective,
// radial basis function (thin plate spline) and straight.
//
// Every model is constructed from matching source and destination points and
// is solved lazily on first evaluation. Solving happens at most once per
// model instance and is safe for concurrent use.
package transformation

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Type names a transformation model.
type Type string

// Supported transformation types.
const (
	TypeHelmert         Type = "helmert"
	TypePolynomial1     Type = "polynomial1"
	TypePolynomial2     Type = "polynomial2"
	TypePolynomial3     Type = "polynomial3"
	TypeProjective      Type = "projective"
	TypeThinPlateSpline Type = "thinPlateSpline"
	TypeStraight        Type = "straight"
)

// legacyPolynomial is the type name used before the order was part of it.
const legacyPolynomial = "polynomial"

// Types lists every supported type.
var Types = []Type{
	TypeStraight,
	TypeHelmert,
	TypePolynomial1,
	TypePolynomial2,
	TypePolynomial3,
	TypeProjective,
	TypeThinPlateSpline,
}

var (
	// ErrInsufficientPoints matches any *InsufficientPointsError.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrUnsupportedType is returned for unknown transformation types.
	ErrUnsupportedType = errors.New("unsupported transformation type")

	// ErrPointCountMismatch is returned when source and destination differ in length.
	ErrPointCountMismatch = errors.New("source and destination point counts differ")
)

// InsufficientPointsError reports a model built from fewer points than it needs.
type InsufficientPointsError struct {
	Type     Type
	Required int
	Given    int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("not enough control points for %s transformation: %d required, %d given",
		e.Type, e.Required, e.Given)
}

// Is makes errors.Is(err, ErrInsufficientPoints) succeed.
func (e *InsufficientPointsError) Is(target error) bool {
	return target == ErrInsufficientPoints
}

// ParseType parses a type name. The legacy name "polynomial" maps to
// polynomial1. Matching is case insensitive.
func ParseType(s string) (Type, error) {
	name := strings.TrimSpace(s)
	if strings.EqualFold(name, legacyPolynomial) {
		return TypePolynomial1, nil
	}
	for _, t := range Types {
		if strings.EqualFold(name, string(t)) {
			return t, nil
		}
	}
	return "", errors.Wrapf(ErrUnsupportedType, "%q", s)
}

// ParseTypeWithOrder parses the legacy "polynomial" name together with a
// separate order (1, 2 or 3). An order of 0 means 1. Other names ignore the
// order and are parsed by ParseType.
func ParseTypeWithOrder(s string, order int) (Type, error) {
	if !strings.EqualFold(strings.TrimSpace(s), legacyPolynomial) {
		return ParseType(s)
	}
	switch order {
	case 0, 1:
		return TypePolynomial1, nil
	case 2:
		return TypePolynomial2, nil
	case 3:
		return TypePolynomial3, nil
	}
	return "", errors.Wrapf(ErrUnsupportedType, "polynomial of order %d", order)
}

// MinimumPoints returns the number of control points the type needs, or 0
// for unknown types.
func (t Type) MinimumPoints() int {
	switch t {
	case TypeHelmert, TypeStraight:
		return 2
	case TypePolynomial1, TypeThinPlateSpline:
		return 3
	case TypeProjective:
		return 4
	case TypePolynomial2:
		return 6
	case TypePolynomial3:
		return 10
	}
	return 0
}

// PolynomialOrder returns the order of a polynomial type, or 0.
func (t Type) PolynomialOrder() int {
	switch t {
	case TypePolynomial1:
		return 1
	case TypePolynomial2:
		return 2
	case TypePolynomial3:
		return 3
	}
	return 0
}

func (t Type) String() string {
	return string(t)
}
