package protocol

import (
	"fmt"
	"slices"
	"strconv"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/persontime/event"
	"github.com/roach88/persontime/expose"
	"github.com/roach88/persontime/merge"
	"github.com/roach88/persontime/timeline"
)

// Compile turns an evaluated CUE value holding a "protocol" block into a
// Protocol. All problems are collected and returned together as
// CompileErrors.
func Compile(v cue.Value) (*Protocol, error) {
	if err := v.Err(); err != nil {
		return nil, CompileErrors{cueError(v, err)}
	}

	root := v.LookupPath(cue.ParsePath("protocol"))
	if !root.Exists() {
		return nil, CompileErrors{&CompileError{
			Code: ErrMissing, Path: "protocol",
			Message: "no protocol block", Pos: v.Pos(),
		}}
	}

	d := &dec{}
	d.known(root, "protocol", "name", "exposure", "merge", "event")

	p := &Protocol{Name: d.str(root, "protocol", "name")}
	if p.Name == "" {
		d.fail(root, ErrMissing, "protocol.name", "a protocol name is required")
	}

	if sec := root.LookupPath(cue.ParsePath("exposure")); sec.Exists() {
		p.Exposure = d.exposure(sec)
	}
	if sec := root.LookupPath(cue.ParsePath("merge")); sec.Exists() {
		p.Merge = d.merge(sec)
	}
	if sec := root.LookupPath(cue.ParsePath("event")); sec.Exists() {
		p.Event = d.event(sec)
	}
	if p.Exposure == nil && p.Merge == nil && p.Event == nil {
		d.fail(root, ErrMissing, "protocol", "protocol declares no stages")
	}

	if len(d.errs) > 0 {
		return nil, d.errs
	}
	return p, nil
}

// dec accumulates compile errors while walking the protocol value.
type dec struct {
	errs CompileErrors
}

func (d *dec) fail(v cue.Value, code timeline.ErrorCode, path, format string, args ...any) {
	d.errs = append(d.errs, &CompileError{
		Code:    code,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
		Pos:     v.Pos(),
	})
}

// fold converts a compiled spec's own validation errors, keeping their
// stage codes and pinning them to the section's source position.
func (d *dec) fold(errs timeline.ConfigErrors, path string, pos token.Pos) {
	for _, e := range errs {
		d.errs = append(d.errs, &CompileError{
			Code:    e.Code,
			Path:    path + "." + e.Field,
			Message: e.Message,
			Pos:     pos,
		})
	}
}

// known flags fields outside the section's vocabulary. CUE structs are open
// by default, so a typo would otherwise silently configure nothing.
func (d *dec) known(v cue.Value, path string, names ...string) {
	iter, err := v.Fields()
	if err != nil {
		d.fail(v, ErrField, path, "must be a struct: %v", err)
		return
	}
	for iter.Next() {
		if !slices.Contains(names, iter.Label()) {
			d.fail(iter.Value(), ErrField, path+"."+iter.Label(), "unknown field")
		}
	}
}

func (d *dec) str(v cue.Value, path, name string) string {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return ""
	}
	s, err := f.String()
	if err != nil {
		d.fail(f, ErrField, path+"."+name, "must be a string")
		return ""
	}
	return s
}

func (d *dec) days(v cue.Value, path, name string) int64 {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return 0
	}
	n, err := f.Int64()
	if err != nil {
		d.fail(f, ErrField, path+"."+name, "must be an integer")
		return 0
	}
	return n
}

func (d *dec) flag(v cue.Value, path, name string) bool {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return false
	}
	b, err := f.Bool()
	if err != nil {
		d.fail(f, ErrField, path+"."+name, "must be a boolean")
		return false
	}
	return b
}

func (d *dec) reals(v cue.Value, path, name string) []float64 {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return nil
	}
	iter, err := f.List()
	if err != nil {
		d.fail(f, ErrField, path+"."+name, "must be a list of numbers")
		return nil
	}
	var out []float64
	for iter.Next() {
		x, err := iter.Value().Float64()
		if err != nil {
			d.fail(iter.Value(), ErrField, path+"."+name, "must be a list of numbers")
			return nil
		}
		out = append(out, x)
	}
	return out
}

func (d *dec) ints(v cue.Value, path, name string) []int64 {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return nil
	}
	iter, err := f.List()
	if err != nil {
		d.fail(f, ErrField, path+"."+name, "must be a list of integers")
		return nil
	}
	var out []int64
	for iter.Next() {
		n, err := iter.Value().Int64()
		if err != nil {
			d.fail(iter.Value(), ErrField, path+"."+name, "must be a list of integers")
			return nil
		}
		out = append(out, n)
	}
	return out
}

func (d *dec) strs(v cue.Value, path, name string) []string {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return nil
	}
	iter, err := f.List()
	if err != nil {
		d.fail(f, ErrField, path+"."+name, "must be a list of strings")
		return nil
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			d.fail(iter.Value(), ErrField, path+"."+name, "must be a list of strings")
			return nil
		}
		out = append(out, s)
	}
	return out
}

// state reads one optional state value: integers, reals, strings, or null
// for a missing state.
func (d *dec) state(v cue.Value, path, name string) timeline.Value {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return nil
	}
	return d.stateOf(f, path+"."+name)
}

func (d *dec) states(v cue.Value, path, name string) []timeline.Value {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return nil
	}
	iter, err := f.List()
	if err != nil {
		d.fail(f, ErrField, path+"."+name, "must be a list of state values")
		return nil
	}
	var out []timeline.Value
	for iter.Next() {
		out = append(out, d.stateOf(iter.Value(), path+"."+name))
	}
	return out
}

func (d *dec) stateOf(f cue.Value, path string) timeline.Value {
	switch f.Kind() {
	case cue.IntKind:
		if i, err := f.Int64(); err == nil {
			return timeline.Int(i)
		}
	case cue.FloatKind, cue.NumberKind:
		if x, err := f.Float64(); err == nil {
			return timeline.Float(x)
		}
	case cue.StringKind:
		if s, err := f.String(); err == nil {
			return timeline.String(s)
		}
	case cue.NullKind:
		return timeline.Missing{}
	}
	d.fail(f, ErrField, path, "state values are integers, reals, or strings")
	return nil
}

// enum reads one optional enum field through its parser; the parser also
// assigns the parsed value via its closure.
func (d *dec) enum(v cue.Value, path, name string, parse func(string) error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return
	}
	s, err := f.String()
	if err != nil {
		d.fail(f, ErrField, path+"."+name, "must be a string")
		return
	}
	if err := parse(s); err != nil {
		d.fail(f, ErrEnum, path+"."+name, "%v", err)
	}
}

// stateLabel interprets a struct label as a state value: integer and real
// labels become numeric states, anything else stays a string.
func stateLabel(s string) timeline.Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return timeline.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return timeline.Float(f)
	}
	return timeline.String(s)
}

func (d *dec) exposure(v cue.Value) *expose.Spec {
	const path = "protocol.exposure"
	d.known(v, path,
		"generate", "reference", "reference_label", "overlap", "priority",
		"combine_column", "projection", "unit", "duration_cuts", "recency_cuts",
		"dose_cuts", "bytype", "grace", "grace_by_value", "merge", "lag",
		"washout", "fillgaps", "carryforward", "point_time", "window",
		"switching", "switching_detail", "state_time", "expand")

	spec := &expose.Spec{
		Generate:        d.str(v, path, "generate"),
		Reference:       d.state(v, path, "reference"),
		ReferenceLabel:  d.str(v, path, "reference_label"),
		PriorityOrder:   d.states(v, path, "priority"),
		CombineColumn:   d.str(v, path, "combine_column"),
		DurationCuts:    d.reals(v, path, "duration_cuts"),
		RecencyCuts:     d.reals(v, path, "recency_cuts"),
		DoseCuts:        d.reals(v, path, "dose_cuts"),
		ByType:          d.flag(v, path, "bytype"),
		Grace:           d.days(v, path, "grace"),
		Merge:           d.days(v, path, "merge"),
		Lag:             d.days(v, path, "lag"),
		Washout:         d.days(v, path, "washout"),
		Fillgaps:        d.days(v, path, "fillgaps"),
		Carryforward:    d.days(v, path, "carryforward"),
		PointTime:       d.flag(v, path, "point_time"),
		Switching:       d.flag(v, path, "switching"),
		SwitchingDetail: d.flag(v, path, "switching_detail"),
		StateTime:       d.flag(v, path, "state_time"),
	}

	d.enum(v, path, "overlap", func(s string) error {
		p, err := expose.ParseOverlapPolicy(s)
		spec.Overlap = p
		return err
	})
	d.enum(v, path, "projection", func(s string) error {
		p, err := expose.ParseProjection(s)
		spec.Projection = p
		return err
	})
	d.enum(v, path, "unit", func(s string) error {
		u, err := timeline.ParseUnit(s)
		spec.Unit = u
		return err
	})
	d.enum(v, path, "expand", func(s string) error {
		cu, err := timeline.ParseCalendarUnit(s)
		spec.ExpandUnit = cu
		return err
	})

	if f := v.LookupPath(cue.ParsePath("grace_by_value")); f.Exists() {
		iter, err := f.Fields()
		if err != nil {
			d.fail(f, ErrField, path+".grace_by_value", "must map states to day counts")
		} else {
			spec.GraceByValue = make(map[timeline.Value]int64)
			for iter.Next() {
				days, err := iter.Value().Int64()
				if err != nil {
					d.fail(iter.Value(), ErrField,
						path+".grace_by_value."+iter.Label(), "must be an integer")
					continue
				}
				spec.GraceByValue[stateLabel(iter.Label())] = days
			}
		}
	}

	if f := v.LookupPath(cue.ParsePath("window")); f.Exists() {
		d.known(f, path+".window", "min", "max")
		spec.Window = &expose.DurationWindow{
			Min: d.days(f, path+".window", "min"),
			Max: d.days(f, path+".window", "max"),
		}
	}

	d.fold(spec.Validate(), path, v.Pos())
	return spec
}

func (d *dec) merge(v cue.Value) *merge.Spec {
	const path = "protocol.merge"
	d.known(v, path, "force", "indicator", "inputs")

	spec := &merge.Spec{Force: d.flag(v, path, "force")}

	if f := v.LookupPath(cue.ParsePath("indicator")); f.Exists() {
		d.known(f, path+".indicator", "column")
		spec.Indicator = &merge.IndicatorSpec{Column: d.str(f, path+".indicator", "column")}
	}

	if f := v.LookupPath(cue.ParsePath("inputs")); f.Exists() {
		iter, err := f.List()
		if err != nil {
			d.fail(f, ErrField, path+".inputs", "must be a list")
		} else {
			for i := 0; iter.Next(); i++ {
				in := iter.Value()
				ipath := fmt.Sprintf("%s.inputs[%d]", path, i)
				d.known(in, ipath, "columns", "rename", "prefix", "continuous", "reference")
				is := merge.InputSpec{
					Columns:    d.strs(in, ipath, "columns"),
					Prefix:     d.str(in, ipath, "prefix"),
					Continuous: d.strs(in, ipath, "continuous"),
					Reference:  d.state(in, ipath, "reference"),
				}
				if rf := in.LookupPath(cue.ParsePath("rename")); rf.Exists() {
					riter, err := rf.Fields()
					if err != nil {
						d.fail(rf, ErrField, ipath+".rename", "must map column names")
					} else {
						is.Rename = make(map[string]string)
						for riter.Next() {
							to, err := riter.Value().String()
							if err != nil {
								d.fail(riter.Value(), ErrField,
									ipath+".rename."+riter.Label(), "must be a string")
								continue
							}
							is.Rename[riter.Label()] = to
						}
					}
				}
				spec.Inputs = append(spec.Inputs, is)
			}
		}
	}

	d.fold(spec.Validate(), path, v.Pos())
	return spec
}

func (d *dec) event(v cue.Value) *event.Spec {
	const path = "protocol.event"
	d.known(v, path,
		"generate", "semantics", "continuous", "competing_codes",
		"time_column", "time_unit")

	spec := &event.Spec{
		Generate:       d.str(v, path, "generate"),
		Continuous:     d.strs(v, path, "continuous"),
		CompetingCodes: d.ints(v, path, "competing_codes"),
		TimeColumn:     d.str(v, path, "time_column"),
	}

	d.enum(v, path, "semantics", func(s string) error {
		m, err := event.ParseSemantics(s)
		spec.Semantics = m
		return err
	})
	d.enum(v, path, "time_unit", func(s string) error {
		u, err := timeline.ParseUnit(s)
		spec.TimeUnit = u
		return err
	})

	d.fold(spec.Validate(), path, v.Pos())
	return spec
}

// cueError extracts position info from a CUE evaluation error.
func cueError(v cue.Value, err error) *CompileError {
	ce := &CompileError{Code: ErrBuild, Path: "protocol", Message: err.Error(), Pos: v.Pos()}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		ce.Message = errs[0].Error()
		if positions := cueerrors.Positions(errs[0]); len(positions) > 0 {
			ce.Pos = positions[0]
		}
	}
	return ce
}
