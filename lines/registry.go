package lines

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kurtesianplane/andarTayo-sub000/data"
	"github.com/kurtesianplane/andarTayo-sub000/model"
)

const (
	// Floor for estimated trip times, so adjacent stops don't
	// come out as 0-minute trips.
	DefaultMinMinutes = 5
)

// Registry is the immutable catalog of supported lines.
type Registry struct {
	lines []model.Line
	byID  map[string]int
}

type registryFile struct {
	Lines []model.Line `yaml:"lines" validate:"min=1,unique=ID,dive"`
}

// Creates a registry holding the given lines, in order.
//
// Missing data keys default to the line ID, and missing base
// payment methods to the first method listed.
func NewRegistry(lines ...model.Line) (*Registry, error) {
	r := &Registry{
		lines: make([]model.Line, 0, len(lines)),
		byID:  map[string]int{},
	}

	for _, line := range lines {
		line, err := normalize(line)
		if err != nil {
			return nil, err
		}
		if _, found := r.byID[line.ID]; found {
			return nil, fmt.Errorf("repeated line id '%s'", line.ID)
		}
		r.byID[line.ID] = len(r.lines)
		r.lines = append(r.lines, line)
	}

	return r, nil
}

// Loads a registry from a YAML document on the form
//
//	lines:
//	  - id: lrt1
//	    name: LRT Line 1
//	    ...
func LoadRegistry(r io.Reader) (*Registry, error) {
	var file registryFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding lines: %w", err)
	}

	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("validating lines: %w", err)
	}

	return NewRegistry(file.Lines...)
}

// Registry of the lines bundled with this module.
func Default() (*Registry, error) {
	buf, err := data.FS.ReadFile("lines.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading bundled lines: %w", err)
	}
	return LoadRegistry(bytes.NewReader(buf))
}

func (r *Registry) Describe(lineID string) (model.Line, error) {
	i, found := r.byID[lineID]
	if !found {
		return model.Line{}, &model.UnknownLineError{LineID: lineID}
	}
	return copyLine(r.lines[i]), nil
}

// All lines in declaration order.
func (r *Registry) List() []model.Line {
	lines := make([]model.Line, 0, len(r.lines))
	for _, l := range r.lines {
		lines = append(lines, copyLine(l))
	}
	return lines
}

func (r *Registry) PaymentMethods(lineID string) ([]model.PaymentMethod, error) {
	line, err := r.Describe(lineID)
	if err != nil {
		return nil, err
	}
	return line.PaymentMethods, nil
}

// Returned lines must not alias the registry's payment method
// slices, or callers could mutate the registry.
func copyLine(l model.Line) model.Line {
	l.PaymentMethods = append([]model.PaymentMethod(nil), l.PaymentMethods...)
	return l
}

func normalize(line model.Line) (model.Line, error) {
	if line.ID == "" {
		return line, fmt.Errorf("empty line id")
	}

	switch line.Topology {
	case model.TopologyRail, model.TopologyBusRapidTransit:
	default:
		return line, fmt.Errorf("line '%s': unknown topology '%s'", line.ID, line.Topology)
	}

	switch line.FareKind {
	case model.FareKindMatrix, model.FareKindDistanceLinear, model.FareKindDistanceTiered:
	default:
		return line, fmt.Errorf("line '%s': unknown fare kind '%s'", line.ID, line.FareKind)
	}

	if len(line.PaymentMethods) == 0 {
		return line, fmt.Errorf("line '%s': no payment methods", line.ID)
	}
	seen := map[string]bool{}
	for _, m := range line.PaymentMethods {
		if m.ID == "" {
			return line, fmt.Errorf("line '%s': empty payment method id", line.ID)
		}
		if seen[m.ID] {
			return line, fmt.Errorf("line '%s': repeated payment method '%s'", line.ID, m.ID)
		}
		seen[m.ID] = true
	}

	if line.BaseMethod == "" {
		line.BaseMethod = line.PaymentMethods[0].ID
	}
	if !seen[line.BaseMethod] {
		return line, fmt.Errorf("line '%s': base method '%s' not among payment methods", line.ID, line.BaseMethod)
	}

	if line.Directions.Ascending == "" || line.Directions.Descending == "" {
		return line, fmt.Errorf("line '%s': missing direction labels", line.ID)
	}
	if line.Directions.Ascending == line.Directions.Descending {
		return line, fmt.Errorf("line '%s': direction labels must differ", line.ID)
	}

	if line.DataKey == "" {
		line.DataKey = line.ID
	}
	if line.Timing.MinMinutes <= 0 {
		line.Timing.MinMinutes = DefaultMinMinutes
	}

	line.PaymentMethods = append([]model.PaymentMethod(nil), line.PaymentMethods...)

	return line, nil
}
