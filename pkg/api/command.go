package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the stable discriminant shared by a Command and its Response.
type Kind string

const (
	KindPredictSample  Kind = "predict_sample"
	KindPredictSamples Kind = "predict_samples"
	KindProbaSample    Kind = "proba_sample"
	KindProbaSamples   Kind = "proba_samples"
	KindRankSample     Kind = "rank_sample"
	KindScore          Kind = "score"
	KindQueryModel     Kind = "query_model"
	KindServerStatus   Kind = "server_status"

	// KindError is only carried by ErrorResponse.
	KindError Kind = "error"
)

var commandKinds = []Kind{
	KindPredictSample,
	KindPredictSamples,
	KindProbaSample,
	KindProbaSamples,
	KindRankSample,
	KindScore,
	KindQueryModel,
	KindServerStatus,
}

// CommandKinds returns every command discriminant in declaration order.
func CommandKinds() []Kind {
	out := make([]Kind, len(commandKinds))
	copy(out, commandKinds)
	return out
}

// IsCommand reports whether k names a Command variant.
func (k Kind) IsCommand() bool {
	for _, c := range commandKinds {
		if c == k {
			return true
		}
	}
	return false
}

// Capability names what a command needs from the estimator.
type Capability string

const (
	CapabilityNone          Capability = ""
	CapabilityPredict       Capability = "predictor"
	CapabilityProbabilistic Capability = "probabilistic"
	CapabilityRanking       Capability = "ranking"
)

// Capability returns the estimator capability commands of kind k require.
func (k Kind) Capability() Capability {
	switch k {
	case KindPredictSample, KindPredictSamples:
		return CapabilityPredict
	case KindProbaSample, KindProbaSamples:
		return CapabilityProbabilistic
	case KindRankSample, KindScore:
		return CapabilityRanking
	default:
		return CapabilityNone
	}
}

// Command is an immutable request to the server. The set of variants is
// closed; switch on the concrete type or on Kind.
type Command interface {
	Kind() Kind
	isCommand()
}

// SampleCommand is implemented by commands carrying a single sample.
type SampleCommand interface {
	Command
	Sample() Sample
}

// DatasetCommand is implemented by commands carrying a batch of samples.
type DatasetCommand interface {
	Command
	Samples() Dataset
}

type sampleCommand struct {
	sample Sample
}

func newSampleCommand(sample Sample) (sampleCommand, error) {
	if err := ValidateSample("sample", sample); err != nil {
		return sampleCommand{}, err
	}
	return sampleCommand{sample: sample.Clone()}, nil
}

// Sample returns a copy of the sample.
func (c sampleCommand) Sample() Sample { return c.sample.Clone() }

func (sampleCommand) isCommand() {}

type datasetCommand struct {
	samples Dataset
}

func newDatasetCommand(samples Dataset) (datasetCommand, error) {
	if err := ValidateDataset("samples", samples); err != nil {
		return datasetCommand{}, err
	}
	return datasetCommand{samples: samples.Clone()}, nil
}

// Samples returns a copy of the dataset.
func (c datasetCommand) Samples() Dataset { return c.samples.Clone() }

func (datasetCommand) isCommand() {}

// PredictSample asks for the prediction of a single sample.
type PredictSample struct{ sampleCommand }

// NewPredictSample validates sample and returns the command.
func NewPredictSample(sample Sample) (*PredictSample, error) {
	sc, err := newSampleCommand(sample)
	if err != nil {
		return nil, err
	}
	return &PredictSample{sc}, nil
}

func (*PredictSample) Kind() Kind { return KindPredictSample }

// PredictSamples asks for predictions of a batch of samples.
type PredictSamples struct{ datasetCommand }

// NewPredictSamples validates samples and returns the command.
func NewPredictSamples(samples Dataset) (*PredictSamples, error) {
	dc, err := newDatasetCommand(samples)
	if err != nil {
		return nil, err
	}
	return &PredictSamples{dc}, nil
}

func (*PredictSamples) Kind() Kind { return KindPredictSamples }

// ProbaSample asks for the class probabilities of a single sample.
type ProbaSample struct{ sampleCommand }

// NewProbaSample validates sample and returns the command.
func NewProbaSample(sample Sample) (*ProbaSample, error) {
	sc, err := newSampleCommand(sample)
	if err != nil {
		return nil, err
	}
	return &ProbaSample{sc}, nil
}

func (*ProbaSample) Kind() Kind { return KindProbaSample }

// ProbaSamples asks for the class probabilities of a batch of samples.
type ProbaSamples struct{ datasetCommand }

// NewProbaSamples validates samples and returns the command.
func NewProbaSamples(samples Dataset) (*ProbaSamples, error) {
	dc, err := newDatasetCommand(samples)
	if err != nil {
		return nil, err
	}
	return &ProbaSamples{dc}, nil
}

func (*ProbaSamples) Kind() Kind { return KindProbaSamples }

// RankSample asks for the ranking score of a single sample.
type RankSample struct{ sampleCommand }

// NewRankSample validates sample and returns the command.
func NewRankSample(sample Sample) (*RankSample, error) {
	sc, err := newSampleCommand(sample)
	if err != nil {
		return nil, err
	}
	return &RankSample{sc}, nil
}

func (*RankSample) Kind() Kind { return KindRankSample }

// Score asks for the ranking scores of a batch of samples.
type Score struct{ datasetCommand }

// NewScore validates samples and returns the command.
func NewScore(samples Dataset) (*Score, error) {
	dc, err := newDatasetCommand(samples)
	if err != nil {
		return nil, err
	}
	return &Score{dc}, nil
}

func (*Score) Kind() Kind { return KindScore }

// QueryModel asks for the properties of the served estimator.
type QueryModel struct{}

// NewQueryModel returns the command.
func NewQueryModel() *QueryModel { return &QueryModel{} }

func (*QueryModel) Kind() Kind { return KindQueryModel }
func (*QueryModel) isCommand() {}

// ServerStatus asks for process information about the server.
type ServerStatus struct{}

// NewServerStatus returns the command.
func NewServerStatus() *ServerStatus { return &ServerStatus{} }

func (*ServerStatus) Kind() Kind { return KindServerStatus }
func (*ServerStatus) isCommand() {}

// NewCommand builds the command of the given kind. Sample kinds read sample,
// dataset kinds read samples, and the remaining kinds ignore both.
func NewCommand(kind Kind, sample Sample, samples Dataset) (Command, error) {
	switch kind {
	case KindPredictSample:
		return NewPredictSample(sample)
	case KindPredictSamples:
		return NewPredictSamples(samples)
	case KindProbaSample:
		return NewProbaSample(sample)
	case KindProbaSamples:
		return NewProbaSamples(samples)
	case KindRankSample:
		return NewRankSample(sample)
	case KindScore:
		return NewScore(samples)
	case KindQueryModel:
		return NewQueryModel(), nil
	case KindServerStatus:
		return NewServerStatus(), nil
	default:
		return nil, NewValidationError("kind", "unknown command kind %q", kind)
	}
}

type commandBody struct {
	Sample  Sample  `json:"sample"`
	Samples Dataset `json:"samples"`
}

// CommandFromJSON builds the command of the given kind from a JSON body of
// the form {"sample": [...]} or {"samples": [[...], ...]}. An empty body is
// accepted for kinds without payload.
func CommandFromJSON(kind Kind, body []byte) (Command, error) {
	var b commandBody
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		if err := dec.Decode(&b); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return nil, ve
			}
			return nil, NewInvalidRequestError("body", fmt.Sprintf("malformed JSON: %v", err))
		}
	}
	return NewCommand(kind, b.Sample, b.Samples)
}

// CommandAsMap renders the payload of cmd the way CommandFromJSON reads it.
func CommandAsMap(cmd Command) map[string]any {
	switch c := cmd.(type) {
	case SampleCommand:
		return map[string]any{"sample": c.Sample()}
	case DatasetCommand:
		return map[string]any{"samples": c.Samples()}
	default:
		return map[string]any{}
	}
}

// ValidateSample checks that sample is non-empty and holds only valid values.
func ValidateSample(param string, sample Sample) error {
	if len(sample) == 0 {
		return NewValidationError(param, "sample cannot be empty")
	}
	for i, v := range sample {
		if !v.Valid() {
			return NewValidationError(param, "feature %d is not a valid value", i)
		}
	}
	return nil
}

// ValidateDataset checks that samples is non-empty and that every sample is
// valid and has the same number of features.
func ValidateDataset(param string, samples Dataset) error {
	if len(samples) == 0 {
		return NewValidationError(param, "dataset must contain at least one sample")
	}
	width := len(samples[0])
	for i, s := range samples {
		if err := ValidateSample(fmt.Sprintf("%s[%d]", param, i), s); err != nil {
			return err
		}
		if len(s) != width {
			return NewValidationError(param, "sample %d has %d features, expected %d", i, len(s), width)
		}
	}
	return nil
}
