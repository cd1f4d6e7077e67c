package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Level is a semantic intensity band assigned to a region by its rules.
type Level string

const (
	// LevelUnknown is the initial level of every region before its first
	// successful evaluation.
	LevelUnknown Level = "unknown"

	// LevelNormal is assigned when no threshold rule matches.
	LevelNormal Level = "normal"
)

// Reserved reports whether the label is claimed by the state machine and
// may not be used as a rule level.
func (l Level) Reserved() bool {
	return l == LevelUnknown || l == LevelNormal
}

// Op is a threshold comparison operator.
type Op string

const (
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
)

// IsValid checks if the operator is one of the supported comparisons.
func (o Op) IsValid() bool {
	switch o {
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	default:
		return false
	}
}

// Compare applies the operator with the rule bound on the right-hand side.
func (o Op) Compare(value, bound float64) bool {
	switch o {
	case OpLess:
		return value < bound
	case OpLessEqual:
		return value <= bound
	case OpGreater:
		return value > bound
	case OpGreaterEqual:
		return value >= bound
	default:
		return false
	}
}

// ThresholdRule assigns a level when its comparison holds against the
// intensity value. Rules are evaluated in declared order; the first match
// wins.
type ThresholdRule struct {
	Level Level   `json:"level" yaml:"level"`
	Op    Op      `json:"op" yaml:"op"`
	Bound float64 `json:"bound" yaml:"bound"`
}

// Matches reports whether the rule's comparison holds for value.
func (r ThresholdRule) Matches(value float64) bool {
	return r.Op.Compare(value, r.Bound)
}

// Rule validation errors, surfaced at configuration load time.
var (
	ErrInvalidOp      = errors.New("invalid comparison operator")
	ErrEmptyLevel     = errors.New("rule level label cannot be empty")
	ErrReservedLevel  = errors.New("rule level label is reserved")
	ErrNonFiniteBound = errors.New("rule bound must be finite")
)

// Validate checks the rule for configuration errors.
func (r ThresholdRule) Validate() error {
	if r.Level == "" {
		return ErrEmptyLevel
	}
	if r.Level.Reserved() {
		return fmt.Errorf("%w: %q", ErrReservedLevel, r.Level)
	}
	if !r.Op.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidOp, r.Op)
	}
	if math.IsNaN(r.Bound) || math.IsInf(r.Bound, 0) {
		return ErrNonFiniteBound
	}
	return nil
}

// RegionID is the provider's numeric identifier for a reporting region.
type RegionID int

// Code returns the identifier as a stable string code for topics and keys.
func (id RegionID) Code() string { return strconv.Itoa(int(id)) }

// The provider's regional breakdown of Great Britain.
const (
	NorthScotland    RegionID = 1
	SouthScotland    RegionID = 2
	NorthWestEngland RegionID = 3
	NorthEastEngland RegionID = 4
	SouthYorkshire   RegionID = 5
	NorthWales       RegionID = 6
	SouthWales       RegionID = 7
	WestMidlands     RegionID = 8
	EastMidlands     RegionID = 9
	EastEngland      RegionID = 10
	SouthWestEngland RegionID = 11
	SouthEngland     RegionID = 12
	London           RegionID = 13
	SouthEastEngland RegionID = 14
	England          RegionID = 15
	Scotland         RegionID = 16
	Wales            RegionID = 17
)

var regionLabels = map[RegionID]string{
	NorthScotland:    "North Scotland",
	SouthScotland:    "South Scotland",
	NorthWestEngland: "North West England",
	NorthEastEngland: "North East England",
	SouthYorkshire:   "South Yorkshire",
	NorthWales:       "North Wales",
	SouthWales:       "South Wales",
	WestMidlands:     "West Midlands",
	EastMidlands:     "East Midlands",
	EastEngland:      "East England",
	SouthWestEngland: "South West England",
	SouthEngland:     "South England",
	London:           "London",
	SouthEastEngland: "South East England",
	England:          "England",
	Scotland:         "Scotland",
	Wales:            "Wales",
}

// DefaultLabel returns the provider's name for the region, or the numeric
// code when the id is outside the known range.
func (id RegionID) DefaultLabel() string {
	if label, ok := regionLabels[id]; ok {
		return label
	}
	return id.Code()
}

// Region is a configured geographic unit tracked independently for polling
// and alerting. Immutable after configuration load.
type Region struct {
	ID       RegionID
	Label    string
	Rules    []ThresholdRule
	Interval time.Duration
}
