package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/interval"
	"digital.vasic.challengeboard/pkg/logging"
	"digital.vasic.challengeboard/pkg/requirement"
)

// listFile is the on-disk header of a list section.
type listFile struct {
	MaxActive *int   `yaml:"maxChallengesPerPlayer" validate:"omitempty,gte=1"`
	Visible   *int   `yaml:"visible-missions" validate:"omitempty,gte=1"`
	Interval  string `yaml:"rotation-interval"`

	Challenges yaml.Node `yaml:"challenges" validate:"-"`
}

// challengeFile is the on-disk form of one challenge. Durations
// accept an integer number of milliseconds, an interval
// expression such as "1d12h", or a Go duration string.
type challengeFile struct {
	Description     string           `yaml:"description" validate:"max=1024"`
	NeedsSelection  bool             `yaml:"needs-selection"`
	Repeatable      bool             `yaml:"repeatable"`
	RepeatableEvery yaml.Node        `yaml:"repeatable-every" validate:"-"`
	Permission      string           `yaml:"permission"`
	MaxDuration     yaml.Node        `yaml:"max-duration" validate:"-"`
	Requirements    yaml.Node        `yaml:"requirements" validate:"-"`
	Rewards         []map[string]any `yaml:"rewards"`
}

// Loader materializes list definitions from YAML.
type Loader struct {
	requirements *requirement.Registry
	logger       logging.Logger
	validate     *validator.Validate
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the logger that receives configuration
// errors.
func WithLoaderLogger(l logging.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// WithRequirements sets the requirement kind registry.
func WithRequirements(r *requirement.Registry) LoaderOption {
	return func(ld *Loader) { ld.requirements = r }
}

// NewLoader creates a Loader using the built-in requirement
// kinds unless WithRequirements says otherwise.
func NewLoader(opts ...LoaderOption) *Loader {
	ld := &Loader{
		requirements: requirement.NewRegistry(),
		logger:       logging.NullLogger{},
		validate:     validator.New(),
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Load builds the list listID from a YAML mapping. Bad
// challenges are logged, recorded in Problems, and skipped. An
// error is returned only when the section itself is unusable.
func (ld *Loader) Load(
	listID string, node *yaml.Node,
) (*ListDefinition, error) {
	if node != nil && node.Kind == yaml.DocumentNode &&
		len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node == nil || node.Kind != yaml.MappingNode {
		return nil, &ConfigurationError{
			List: listID,
			Err:  errors.New("list section must be a mapping"),
		}
	}

	var header listFile
	if err := node.Decode(&header); err != nil {
		return nil, &ConfigurationError{List: listID, Err: err}
	}
	if err := ld.validate.Struct(header); err != nil {
		return nil, &ConfigurationError{List: listID, Err: err}
	}

	list := NewListDefinition(listID)
	if header.MaxActive != nil {
		list.MaxActivePerParticipant = *header.MaxActive
	}
	if header.Interval != "" {
		list.RotationInterval = header.Interval
	}
	if !interval.IsDisabled(list.RotationInterval) {
		if _, err := interval.Parse(list.RotationInterval); err != nil {
			ld.problem(list, &ConfigurationError{List: listID, Err: err})
		}
	}

	ld.loadChallenges(list, &header.Challenges)

	if header.Visible != nil {
		list.VisibleCount = *header.Visible
	} else {
		list.VisibleCount = list.Len()
	}

	ld.logger.Info("list loaded",
		logging.ListField(listID),
		logging.IntField("challenges", list.Len()),
		logging.IntField("visible", list.EffectiveVisible()),
		logging.StringField("interval", list.RotationInterval),
	)
	return list, nil
}

func (ld *Loader) loadChallenges(list *ListDefinition, node *yaml.Node) {
	switch {
	case node.Kind == 0:
		ld.problem(list, &ConfigurationError{
			List: list.ID,
			Err:  fmt.Errorf("%w: challenges", ErrMissingField),
		})
		return
	case node.Kind != yaml.MappingNode:
		ld.problem(list, &ConfigurationError{
			List: list.ID,
			Err:  errors.New("challenges must be a mapping"),
		})
		return
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		id := node.Content[i].Value
		def, err := ld.challenge(id, node.Content[i+1])
		if err != nil {
			ld.problem(list, &ConfigurationError{
				List: list.ID, Challenge: id, Err: err,
			})
			continue
		}
		if err := list.AddChallenge(def); err != nil {
			ld.problem(list, err)
		}
	}
}

func (ld *Loader) challenge(
	id string, node *yaml.Node,
) (*challenge.Definition, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: challenge id", ErrMissingField)
	}
	var file challengeFile
	if err := node.Decode(&file); err != nil {
		return nil, err
	}
	if err := ld.validate.Struct(file); err != nil {
		return nil, err
	}

	def := &challenge.Definition{
		ID:             challenge.ID(id),
		Description:    file.Description,
		NeedsSelection: file.NeedsSelection,
		Repeatable:     file.Repeatable,
		Permission:     file.Permission,
	}

	var err error
	if def.RepeatableEvery, err = parseDuration(
		&file.RepeatableEvery,
	); err != nil {
		return nil, fmt.Errorf("repeatable-every: %w", err)
	}
	if def.MaxDuration, err = parseDuration(&file.MaxDuration); err != nil {
		return nil, fmt.Errorf("max-duration: %w", err)
	}
	if def.Requirements, err = ld.buildRequirements(
		&file.Requirements,
	); err != nil {
		return nil, err
	}
	if def.Rewards, err = buildRewards(file.Rewards); err != nil {
		return nil, err
	}
	return def, nil
}

func (ld *Loader) buildRequirements(
	node *yaml.Node,
) ([]challenge.Requirement, error) {
	if node.Kind == 0 {
		return nil, fmt.Errorf("%w: requirements", ErrMissingField)
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.New("requirements must be a mapping")
	}

	reqs := make([]challenge.Requirement, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var params map[string]any
		if err := node.Content[i+1].Decode(&params); err != nil {
			return nil, fmt.Errorf("requirement %s: %w", name, err)
		}
		kind, _ := params["kind"].(string)
		delete(params, "kind")

		spec := challenge.RequirementSpec{
			Name: name, Kind: kind, Params: params,
		}
		if err := ld.validate.Struct(spec); err != nil {
			return nil, fmt.Errorf("requirement %s: %w", name, err)
		}
		req, err := ld.requirements.Build(spec)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func buildRewards(raw []map[string]any) ([]challenge.Reward, error) {
	rewards := make([]challenge.Reward, 0, len(raw))
	for i, m := range raw {
		typ, _ := m["type"].(string)
		if typ == "" {
			return nil, fmt.Errorf(
				"%w: rewards[%d].type", ErrMissingField, i,
			)
		}
		data := make(map[string]any, len(m))
		for k, v := range m {
			if k != "type" {
				data[k] = v
			}
		}
		rewards = append(rewards, challenge.Reward{Type: typ, Data: data})
	}
	return rewards, nil
}

func parseDuration(node *yaml.Node) (time.Duration, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return 0, nil
	}
	if node.Kind != yaml.ScalarNode {
		return 0, errors.New("must be a scalar")
	}
	if node.Tag == "!!int" {
		ms, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil || ms < 0 {
			return 0, fmt.Errorf("invalid milliseconds %q", node.Value)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	if d, err := interval.Parse(node.Value); err == nil {
		return d, nil
	}
	d, err := time.ParseDuration(node.Value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid duration %q", node.Value)
	}
	return d, nil
}

func (ld *Loader) problem(list *ListDefinition, err error) {
	list.Problems = append(list.Problems, err)
	ld.logger.Warn("configuration error, entry skipped",
		logging.ListField(list.ID), logging.ErrorField(err),
	)
}

// LoadFile loads one list from a YAML file. The list id is the
// file name without its extension.
func (ld *Loader) LoadFile(path string) (*ListDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to read list file %s: %w", path, err,
		)
	}

	base := filepath.Base(path)
	id := strings.TrimSuffix(base, filepath.Ext(base))

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigurationError{
			List: id, Err: fmt.Errorf("parse %s: %w", path, err),
		}
	}
	return ld.Load(id, &doc)
}

// LoadDir loads every .yaml and .yml file in dir into a
// Catalog. It does not recurse into subdirectories. Files that
// fail to load are recorded in Catalog.Problems.
func (ld *Loader) LoadDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to read directory %s: %w", dir, err,
		)
	}

	cat := NewCatalog()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		p := filepath.Join(dir, entry.Name())
		list, err := ld.LoadFile(p)
		if err == nil {
			err = cat.Register(list)
		}
		if err != nil {
			cat.Problems = append(cat.Problems, err)
			ld.logger.Warn("list skipped",
				logging.StringField("file", p),
				logging.ErrorField(err),
			)
		}
	}
	return cat, nil
}
