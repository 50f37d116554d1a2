package search

import (
	"encoding/json"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/iqpnni/pkg/cache"
	"github.com/matzehuels/iqpnni/pkg/errors"
	"github.com/matzehuels/iqpnni/pkg/iqp"
	"github.com/matzehuels/iqpnni/pkg/nni"
	"github.com/matzehuels/iqpnni/pkg/stoprule"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultSeed is the default random seed for reproducibility.
	DefaultSeed = uint64(42)

	// DefaultTolLikelihood is the gain an iteration needs over the best
	// score to count as a new best tree.
	DefaultTolLikelihood = 0.001

	// DefaultSpeedUpAfter is the number of iterations after which hill
	// climbs that cannot beat the best tree are abandoned early.
	DefaultSpeedUpAfter = 100

	// DefaultRandomNNIs is the number of random NNI rounds of one
	// random-NNI perturbation.
	DefaultRandomNNIs = 3

	// DefaultBootstrapEpsilon is the RELL tie threshold.
	DefaultBootstrapEpsilon = 0.5

	// sameScoreMargin is how close to the best score a discarded iteration
	// must come back to count as a revisit.
	sameScoreMargin = 1e-4
)

// Perturbation strategies.
const (
	PerturbIQP       = "iqp"
	PerturbRandomNNI = "random-nni"
)

// ValidPerturbations is the set of supported perturbation strategies.
var ValidPerturbations = map[string]bool{
	PerturbIQP:       true,
	PerturbRandomNNI: true,
}

// =============================================================================
// Options
// =============================================================================

// Options configures a search. It is read from TOML option files and
// serialized into result cache keys.
type Options struct {
	Seed uint64 `toml:"seed" json:"seed"`

	// StartTree is a Newick starting tree. Empty builds one by quartet
	// puzzling.
	StartTree string `toml:"start_tree" json:"start_tree,omitempty"`

	// Iterations and stopping
	StopRule       string        `toml:"stop_rule" json:"stop_rule,omitempty"`
	MinIterations  int           `toml:"min_iterations" json:"min_iterations,omitempty"`
	MaxIterations  int           `toml:"max_iterations" json:"max_iterations,omitempty"`
	StopConfidence float64       `toml:"stop_confidence" json:"stop_confidence,omitempty"`
	TimeLimit      time.Duration `toml:"time_limit" json:"time_limit,omitempty"`
	TolLikelihood  float64       `toml:"tol_likelihood" json:"tol_likelihood,omitempty"`

	// Perturbation
	Perturbation     string  `toml:"perturbation" json:"perturbation,omitempty"`
	DeleteProportion float64 `toml:"p_delete" json:"p_delete,omitempty"`
	KRepresent       int     `toml:"k_represent" json:"k_represent,omitempty"`
	Quartet          string  `toml:"quartet" json:"quartet,omitempty"`
	RandomNNIs       int     `toml:"random_nnis" json:"random_nnis,omitempty"`

	// Hill climbing
	NNIVariant     string  `toml:"nni_variant" json:"nni_variant,omitempty"`
	SpeedNNI       bool    `toml:"speed_nni" json:"speed_nni,omitempty"`
	SpeedConf      float64 `toml:"speed_conf" json:"speed_conf,omitempty"`
	SpeedUpAfter   int     `toml:"speed_up_after" json:"speed_up_after,omitempty"`
	Prefilter      bool    `toml:"parsimony_prefilter" json:"parsimony_prefilter,omitempty"`
	PrefilterSlack int     `toml:"parsimony_slack" json:"parsimony_slack,omitempty"`

	// Candidate trees
	Candidates          bool    `toml:"candidates" json:"candidates,omitempty"`
	LoglCutoff          float64 `toml:"logl_cutoff" json:"logl_cutoff,omitempty"`
	BootstrapReplicates int     `toml:"bootstrap" json:"bootstrap,omitempty"`
	BootstrapEpsilon    float64 `toml:"bootstrap_epsilon" json:"bootstrap_epsilon,omitempty"`

	// Runtime options (not serialized)
	Refresh bool        `toml:"-" json:"-"`
	Logger  *log.Logger `toml:"-" json:"-"`

	validated bool
}

// LoadOptions reads options from a TOML file. Unknown keys are an error.
func LoadOptions(path string) (Options, error) {
	var o Options
	md, err := toml.DecodeFile(path, &o)
	if err != nil {
		return Options{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Options{}, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown option(s) %s", path, strings.Join(keys, ", "))
	}
	return o, nil
}

// WriteTOML writes o as a TOML option file.
func (o Options) WriteTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(o)
}

// SetDefaults fills every unset field with its default.
func (o *Options) SetDefaults() {
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.StopRule == "" {
		o.StopRule = stoprule.Fixed.String()
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = stoprule.DefaultMaxIterations
	}
	if o.MinIterations == 0 {
		o.MinIterations = min(stoprule.DefaultMinIterations, o.MaxIterations)
	}
	if o.StopConfidence == 0 {
		o.StopConfidence = stoprule.DefaultConfidence
	}
	if o.TolLikelihood == 0 {
		o.TolLikelihood = DefaultTolLikelihood
	}
	if o.Perturbation == "" {
		o.Perturbation = PerturbIQP
	}
	if o.KRepresent == 0 {
		o.KRepresent = iqp.DefaultKRepresent
	}
	if o.Quartet == "" {
		o.Quartet = iqp.Distance.String()
	}
	if o.RandomNNIs == 0 {
		o.RandomNNIs = DefaultRandomNNIs
	}
	if o.NNIVariant == "" {
		o.NNIVariant = nni.NNI5.String()
	}
	if o.SpeedConf == 0 {
		o.SpeedConf = nni.DefaultSpeedConf
	}
	if o.SpeedUpAfter == 0 {
		o.SpeedUpAfter = DefaultSpeedUpAfter
	}
	if o.BootstrapEpsilon == 0 {
		o.BootstrapEpsilon = DefaultBootstrapEpsilon
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate checks every field. It assumes SetDefaults has run.
func (o *Options) Validate() error {
	if _, err := stoprule.ParseMode(o.StopRule); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "stop_rule")
	}
	if o.MaxIterations < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "max_iterations must be at least 1, got %d", o.MaxIterations)
	}
	if err := errors.ValidateRange("min_iterations", o.MinIterations, 1, o.MaxIterations); err != nil {
		return configErr(err)
	}
	if err := errors.ValidateProbability("stop_confidence", o.StopConfidence); err != nil {
		return configErr(err)
	}
	if o.TimeLimit < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "time_limit must not be negative, got %v", o.TimeLimit)
	}
	if err := errors.ValidatePositive("tol_likelihood", o.TolLikelihood); err != nil {
		return configErr(err)
	}
	if !ValidPerturbations[o.Perturbation] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid perturbation: %q (must be one of: %s)",
			o.Perturbation, strings.Join(sortedKeys(ValidPerturbations), ", "))
	}
	if err := errors.ValidateProbability("p_delete", o.DeleteProportion); err != nil {
		return configErr(err)
	}
	if o.KRepresent < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "k_represent must be positive, got %d", o.KRepresent)
	}
	if _, err := iqp.ParseAssessment(o.Quartet); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "quartet")
	}
	if o.RandomNNIs < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "random_nnis must be positive, got %d", o.RandomNNIs)
	}
	if _, err := nni.ParseVariant(o.NNIVariant); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "nni_variant")
	}
	if o.SpeedConf <= 0 || o.SpeedConf > 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "speed_conf must be in (0, 1], got %v", o.SpeedConf)
	}
	if o.SpeedUpAfter < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "speed_up_after must not be negative, got %d", o.SpeedUpAfter)
	}
	if o.PrefilterSlack < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "parsimony_slack must not be negative, got %d", o.PrefilterSlack)
	}
	if o.BootstrapReplicates < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "bootstrap must not be negative, got %d", o.BootstrapReplicates)
	}
	if err := errors.ValidatePositive("bootstrap_epsilon", o.BootstrapEpsilon); err != nil {
		return configErr(err)
	}
	return nil
}

// ValidateAndSetDefaults applies defaults and validates. It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	o.SetDefaults()
	if err := o.Validate(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// Hash returns a stable fingerprint of the options that affect the
// result. The starting tree is hashed separately.
func (o Options) Hash() string {
	o.StartTree = ""
	data, _ := json.Marshal(o)
	return cache.Hash(data)
}

// configErr recodes a field validation error as a configuration error.
func configErr(err error) error {
	return errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid options")
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
