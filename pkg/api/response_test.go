package api

import (
	"encoding/json"
	"testing"
)

func TestResponseAsMap(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want string
	}{
		{"predict sample", NewPredictSampleResponse(String("red")), `{"prediction":"red"}`},
		{"predict samples", NewPredictSamplesResponse([]Value{Int(1), Int(0)}), `{"predictions":[1,0]}`},
		{"proba sample", NewProbaSampleResponse(map[string]float64{"red": 0.75, "blue": 0.25}), `{"probabilities":{"blue":0.25,"red":0.75}}`},
		{"proba samples", NewProbaSamplesResponse([]map[string]float64{{"a": 1}}), `{"probabilities":[{"a":1}]}`},
		{"rank sample", NewRankSampleResponse(0.5), `{"score":0.5}`},
		{"score", NewScoreResponse([]float64{0.1, 0.9}), `{"scores":[0.1,0.9]}`},
		{"query model", NewQueryModelResponse("classifier", true, false), `{"model":{"probabilistic":true,"ranking":false,"type":"classifier"}}`},
		{"server status", NewServerStatusResponse(100, 7, 5, map[string]string{"go": "go1.25"}), `{"server":{"pid":7,"start":100,"uptime":5,"versions":{"go":"go1.25"}}}`},
		{"error", NewErrorResponse(ErrorTypeValidation, "sample cannot be empty"), `{"error":"sample cannot be empty"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.resp.AsMap())
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("AsMap JSON = %s, want %s", b, tt.want)
			}
		})
	}
}

func TestResponsesAreImmutable(t *testing.T) {
	probs := map[string]float64{"a": 0.5}
	resp := NewProbaSampleResponse(probs)
	probs["a"] = 1
	resp.Probabilities()["a"] = 2
	if got := resp.Probabilities()["a"]; got != 0.5 {
		t.Fatalf("Probabilities()[a] = %v, want 0.5", got)
	}

	scores := []float64{1, 2}
	sr := NewScoreResponse(scores)
	scores[0] = 9
	sr.Scores()[1] = 9
	if got := sr.Scores(); got[0] != 1 || got[1] != 2 {
		t.Fatalf("Scores() = %v, want [1 2]", got)
	}
}
