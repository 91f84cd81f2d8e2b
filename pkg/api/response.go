package api

// Response is the immutable result of handling a Command. Every variant
// renders itself as a single-key map through AsMap.
type Response interface {
	Kind() Kind
	AsMap() map[string]any
	isResponse()
}

// PredictSampleResponse carries the prediction for one sample.
type PredictSampleResponse struct {
	prediction Value
}

// NewPredictSampleResponse returns a response holding prediction.
func NewPredictSampleResponse(prediction Value) *PredictSampleResponse {
	return &PredictSampleResponse{prediction: cloneValue(prediction)}
}

func (r *PredictSampleResponse) Prediction() Value { return cloneValue(r.prediction) }
func (*PredictSampleResponse) Kind() Kind          { return KindPredictSample }
func (*PredictSampleResponse) isResponse()         {}

func (r *PredictSampleResponse) AsMap() map[string]any {
	return map[string]any{"prediction": r.Prediction()}
}

// PredictSamplesResponse carries one prediction per input sample.
type PredictSamplesResponse struct {
	predictions []Value
}

// NewPredictSamplesResponse returns a response holding a copy of predictions.
func NewPredictSamplesResponse(predictions []Value) *PredictSamplesResponse {
	return &PredictSamplesResponse{predictions: cloneValues(predictions)}
}

func (r *PredictSamplesResponse) Predictions() []Value { return cloneValues(r.predictions) }
func (*PredictSamplesResponse) Kind() Kind             { return KindPredictSamples }
func (*PredictSamplesResponse) isResponse()            {}

func (r *PredictSamplesResponse) AsMap() map[string]any {
	return map[string]any{"predictions": r.Predictions()}
}

// ProbaSampleResponse carries the class probabilities of one sample.
type ProbaSampleResponse struct {
	probabilities map[string]float64
}

// NewProbaSampleResponse returns a response holding a copy of probabilities.
func NewProbaSampleResponse(probabilities map[string]float64) *ProbaSampleResponse {
	return &ProbaSampleResponse{probabilities: cloneDist(probabilities)}
}

func (r *ProbaSampleResponse) Probabilities() map[string]float64 { return cloneDist(r.probabilities) }
func (*ProbaSampleResponse) Kind() Kind                          { return KindProbaSample }
func (*ProbaSampleResponse) isResponse()                         {}

func (r *ProbaSampleResponse) AsMap() map[string]any {
	return map[string]any{"probabilities": r.Probabilities()}
}

// ProbaSamplesResponse carries one probability distribution per sample.
type ProbaSamplesResponse struct {
	probabilities []map[string]float64
}

// NewProbaSamplesResponse returns a response holding a copy of probabilities.
func NewProbaSamplesResponse(probabilities []map[string]float64) *ProbaSamplesResponse {
	return &ProbaSamplesResponse{probabilities: cloneDists(probabilities)}
}

func (r *ProbaSamplesResponse) Probabilities() []map[string]float64 {
	return cloneDists(r.probabilities)
}
func (*ProbaSamplesResponse) Kind() Kind  { return KindProbaSamples }
func (*ProbaSamplesResponse) isResponse() {}

func (r *ProbaSamplesResponse) AsMap() map[string]any {
	return map[string]any{"probabilities": r.Probabilities()}
}

// RankSampleResponse carries the ranking score of one sample.
type RankSampleResponse struct {
	score float64
}

// NewRankSampleResponse returns a response holding score.
func NewRankSampleResponse(score float64) *RankSampleResponse {
	return &RankSampleResponse{score: score}
}

func (r *RankSampleResponse) Score() float64 { return r.score }
func (*RankSampleResponse) Kind() Kind       { return KindRankSample }
func (*RankSampleResponse) isResponse()      {}

func (r *RankSampleResponse) AsMap() map[string]any {
	return map[string]any{"score": r.score}
}

// ScoreResponse carries one ranking score per sample.
type ScoreResponse struct {
	scores []float64
}

// NewScoreResponse returns a response holding a copy of scores.
func NewScoreResponse(scores []float64) *ScoreResponse {
	return &ScoreResponse{scores: cloneFloats(scores)}
}

func (r *ScoreResponse) Scores() []float64 { return cloneFloats(r.scores) }
func (*ScoreResponse) Kind() Kind          { return KindScore }
func (*ScoreResponse) isResponse()         {}

func (r *ScoreResponse) AsMap() map[string]any {
	return map[string]any{"scores": r.Scores()}
}

// QueryModelResponse describes the served estimator.
type QueryModelResponse struct {
	modelType     string
	probabilistic bool
	ranking       bool
}

// NewQueryModelResponse returns a response describing an estimator.
func NewQueryModelResponse(modelType string, probabilistic, ranking bool) *QueryModelResponse {
	return &QueryModelResponse{modelType: modelType, probabilistic: probabilistic, ranking: ranking}
}

func (r *QueryModelResponse) Type() string        { return r.modelType }
func (r *QueryModelResponse) Probabilistic() bool { return r.probabilistic }
func (r *QueryModelResponse) Ranking() bool       { return r.ranking }
func (*QueryModelResponse) Kind() Kind            { return KindQueryModel }
func (*QueryModelResponse) isResponse()           {}

func (r *QueryModelResponse) AsMap() map[string]any {
	return map[string]any{"model": map[string]any{
		"type":          r.modelType,
		"probabilistic": r.probabilistic,
		"ranking":       r.ranking,
	}}
}

// ServerStatusResponse reports process information. Start is a unix
// timestamp in seconds and Uptime is in seconds.
type ServerStatusResponse struct {
	start    int64
	pid      int
	uptime   int64
	versions map[string]string
}

// NewServerStatusResponse returns a status response.
func NewServerStatusResponse(start int64, pid int, uptime int64, versions map[string]string) *ServerStatusResponse {
	return &ServerStatusResponse{start: start, pid: pid, uptime: uptime, versions: cloneStrings(versions)}
}

func (r *ServerStatusResponse) Start() int64                { return r.start }
func (r *ServerStatusResponse) PID() int                    { return r.pid }
func (r *ServerStatusResponse) Uptime() int64               { return r.uptime }
func (r *ServerStatusResponse) Versions() map[string]string { return cloneStrings(r.versions) }
func (*ServerStatusResponse) Kind() Kind                    { return KindServerStatus }
func (*ServerStatusResponse) isResponse()                   {}

func (r *ServerStatusResponse) AsMap() map[string]any {
	return map[string]any{"server": map[string]any{
		"start":    r.start,
		"pid":      r.pid,
		"uptime":   r.uptime,
		"versions": r.Versions(),
	}}
}

// ErrorResponse reports a failed command. Type is carried on the binary
// protocol so clients can rebuild the error; the JSON rendering only
// includes the message.
type ErrorResponse struct {
	errType ErrorType
	message string
}

// NewErrorResponse returns an error response.
func NewErrorResponse(errType ErrorType, message string) *ErrorResponse {
	return &ErrorResponse{errType: errType, message: message}
}

func (r *ErrorResponse) Type() ErrorType      { return r.errType }
func (r *ErrorResponse) Message() string      { return r.message }
func (*ErrorResponse) Kind() Kind             { return KindError }
func (*ErrorResponse) isResponse()            {}
func (r *ErrorResponse) Error() string        { return r.message }
func (r *ErrorResponse) ErrorType() ErrorType { return r.errType }

func (r *ErrorResponse) AsMap() map[string]any {
	return map[string]any{"error": r.message}
}

func cloneDist(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneDists(ms []map[string]float64) []map[string]float64 {
	out := make([]map[string]float64, len(ms))
	for i, m := range ms {
		out[i] = cloneDist(m)
	}
	return out
}

func cloneFloats(fs []float64) []float64 {
	out := make([]float64, len(fs))
	copy(out, fs)
	return out
}

func cloneStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
