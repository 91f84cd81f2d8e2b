package codec

import (
	"errors"
	"fmt"

	"github.com/rhuss/modelserve/pkg/api"
)

// Message classes.
const (
	ClassCommand  byte = 0x01
	ClassResponse byte = 0x02
)

// KindTag is the wire discriminant of a command or response kind. Tags are
// part of the protocol and never reused.
type KindTag uint16

const (
	TagPredictSample  KindTag = 1
	TagPredictSamples KindTag = 2
	TagProbaSample    KindTag = 3
	TagProbaSamples   KindTag = 4
	TagRankSample     KindTag = 5
	TagScore          KindTag = 6
	TagQueryModel     KindTag = 7
	TagServerStatus   KindTag = 8
	TagError          KindTag = 0xFFFF
)

var kindTags = map[api.Kind]KindTag{
	api.KindPredictSample:  TagPredictSample,
	api.KindPredictSamples: TagPredictSamples,
	api.KindProbaSample:    TagProbaSample,
	api.KindProbaSamples:   TagProbaSamples,
	api.KindRankSample:     TagRankSample,
	api.KindScore:          TagScore,
	api.KindQueryModel:     TagQueryModel,
	api.KindServerStatus:   TagServerStatus,
	api.KindError:          TagError,
}

var tagKinds = func() map[KindTag]api.Kind {
	m := make(map[KindTag]api.Kind, len(kindTags))
	for k, t := range kindTags {
		m[t] = k
	}
	return m
}()

// headerLen is the size of the kind tag plus the class byte.
const headerLen = 3

// Encode encodes an api.Command or an api.Response.
func Encode(v any) ([]byte, error) {
	switch m := v.(type) {
	case api.Command:
		return EncodeCommand(m)
	case api.Response:
		return EncodeResponse(m)
	default:
		return nil, fmt.Errorf("codec: cannot encode %T", v)
	}
}

// Decode decodes a message produced by Encode. The result is an api.Command
// or an api.Response.
func Decode(b []byte) (any, error) {
	if len(b) < headerLen {
		return nil, &DecodeError{Offset: len(b), Reason: "short message header", Err: ErrTruncated}
	}
	switch class := b[2]; class {
	case ClassCommand:
		return DecodeCommand(b)
	case ClassResponse:
		return DecodeResponse(b)
	default:
		return nil, &DecodeError{Offset: 2, Tag: class, Reason: "unknown message class", Err: ErrUnknownTag}
	}
}

// EncodeCommand encodes cmd. The encoding is deterministic.
func EncodeCommand(cmd api.Command) ([]byte, error) {
	tag, ok := kindTags[cmd.Kind()]
	if !ok || cmd.Kind() == api.KindError {
		return nil, fmt.Errorf("codec: no wire tag for command kind %q", cmd.Kind())
	}
	e := &encoder{buf: make([]byte, 0, 64)}
	e.u16(uint16(tag))
	e.u8(ClassCommand)

	switch c := cmd.(type) {
	case api.SampleCommand:
		if err := e.values(c.Sample()); err != nil {
			return nil, err
		}
	case api.DatasetCommand:
		samples := c.Samples()
		if err := e.listHeader(len(samples)); err != nil {
			return nil, err
		}
		for _, s := range samples {
			if err := e.values(s); err != nil {
				return nil, err
			}
		}
	}
	return e.buf, nil
}

// DecodeCommand decodes a command message.
func DecodeCommand(b []byte) (api.Command, error) {
	d := &decoder{buf: b}
	kind, err := d.header(ClassCommand)
	if err != nil {
		return nil, err
	}

	var (
		sample  api.Sample
		samples api.Dataset
	)
	payloadStart := d.off
	switch kind {
	case api.KindPredictSample, api.KindProbaSample, api.KindRankSample:
		values, err := d.values(1)
		if err != nil {
			return nil, err
		}
		sample = api.Sample(values)
	case api.KindPredictSamples, api.KindProbaSamples, api.KindScore:
		n, err := d.listHeader()
		if err != nil {
			return nil, err
		}
		samples = make(api.Dataset, n)
		for i := range samples {
			values, err := d.values(2)
			if err != nil {
				return nil, err
			}
			samples[i] = api.Sample(values)
		}
	case api.KindError:
		return nil, &DecodeError{Offset: 0, Reason: "error kind is not a command", Err: ErrUnexpectedTag}
	}

	if err := d.done(); err != nil {
		return nil, err
	}

	cmd, err := api.NewCommand(kind, sample, samples)
	if err != nil {
		return nil, &DecodeError{Offset: payloadStart, Reason: "invalid command payload", Err: err}
	}
	return cmd, nil
}

// EncodeResponse encodes resp.
func EncodeResponse(resp api.Response) ([]byte, error) {
	tag, ok := kindTags[resp.Kind()]
	if !ok {
		return nil, fmt.Errorf("codec: no wire tag for response kind %q", resp.Kind())
	}
	e := &encoder{buf: make([]byte, 0, 64)}
	e.u16(uint16(tag))
	e.u8(ClassResponse)

	var err error
	switch r := resp.(type) {
	case *api.PredictSampleResponse:
		err = e.value(r.Prediction())
	case *api.PredictSamplesResponse:
		err = e.values(r.Predictions())
	case *api.ProbaSampleResponse:
		err = e.dist(r.Probabilities())
	case *api.ProbaSamplesResponse:
		dists := r.Probabilities()
		if err = e.listHeader(len(dists)); err != nil {
			break
		}
		for _, d := range dists {
			if err = e.dist(d); err != nil {
				break
			}
		}
	case *api.RankSampleResponse:
		e.putFloat(r.Score())
	case *api.ScoreResponse:
		scores := r.Scores()
		if err = e.listHeader(len(scores)); err != nil {
			break
		}
		for _, s := range scores {
			e.putFloat(s)
		}
	case *api.QueryModelResponse:
		if err = e.putString(r.Type()); err != nil {
			break
		}
		e.putBool(r.Probabilistic())
		e.putBool(r.Ranking())
	case *api.ServerStatusResponse:
		e.putInt(r.Start())
		e.putInt(int64(r.PID()))
		e.putInt(r.Uptime())
		err = e.labels(r.Versions())
	case *api.ErrorResponse:
		if err = e.putString(string(r.Type())); err != nil {
			break
		}
		err = e.putString(r.Message())
	default:
		err = fmt.Errorf("codec: cannot encode response %T", resp)
	}
	if err != nil {
		return nil, err
	}
	return e.buf, nil
}

// DecodeResponse decodes a response message.
func DecodeResponse(b []byte) (api.Response, error) {
	d := &decoder{buf: b}
	kind, err := d.header(ClassResponse)
	if err != nil {
		return nil, err
	}

	var resp api.Response
	switch kind {
	case api.KindPredictSample:
		var v api.Value
		if v, err = d.value(1); err == nil {
			resp = api.NewPredictSampleResponse(v)
		}
	case api.KindPredictSamples:
		var vs []api.Value
		if vs, err = d.values(1); err == nil {
			resp = api.NewPredictSamplesResponse(vs)
		}
	case api.KindProbaSample:
		var dist map[string]float64
		if dist, err = d.dist(); err == nil {
			resp = api.NewProbaSampleResponse(dist)
		}
	case api.KindProbaSamples:
		resp, err = d.probaSamples()
	case api.KindRankSample:
		var f float64
		if f, err = d.readFloat(); err == nil {
			resp = api.NewRankSampleResponse(f)
		}
	case api.KindScore:
		resp, err = d.scores()
	case api.KindQueryModel:
		resp, err = d.queryModel()
	case api.KindServerStatus:
		resp, err = d.serverStatus()
	case api.KindError:
		resp, err = d.errorResponse()
	}
	if err != nil {
		return nil, err
	}
	if err := d.done(); err != nil {
		return nil, err
	}
	return resp, nil
}

func (d *decoder) header(wantClass byte) (api.Kind, error) {
	raw, err := d.u16(0)
	if err != nil {
		return "", err
	}
	kind, ok := tagKinds[KindTag(raw)]
	if !ok {
		d.off = 0
		return "", d.fail(0, fmt.Sprintf("unknown kind tag %d", raw), ErrUnknownTag)
	}
	class, err := d.u8(0)
	if err != nil {
		return "", err
	}
	if class != wantClass {
		d.off--
		if class != ClassCommand && class != ClassResponse {
			return "", d.fail(class, "unknown message class", ErrUnknownTag)
		}
		return "", d.fail(class, "unexpected message class", ErrUnexpectedTag)
	}
	return kind, nil
}

func (d *decoder) done() error {
	if d.remaining() != 0 {
		return d.fail(0, fmt.Sprintf("%d trailing bytes", d.remaining()), ErrTrailingBytes)
	}
	return nil
}

func (d *decoder) probaSamples() (api.Response, error) {
	if err := d.expect(TagList); err != nil {
		return nil, err
	}
	n, err := d.count(TagList, 5)
	if err != nil {
		return nil, err
	}
	dists := make([]map[string]float64, n)
	for i := range dists {
		if dists[i], err = d.dist(); err != nil {
			return nil, err
		}
	}
	return api.NewProbaSamplesResponse(dists), nil
}

func (d *decoder) scores() (api.Response, error) {
	if err := d.expect(TagList); err != nil {
		return nil, err
	}
	n, err := d.count(TagList, 9)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, n)
	for i := range scores {
		if scores[i], err = d.readFloat(); err != nil {
			return nil, err
		}
	}
	return api.NewScoreResponse(scores), nil
}

func (d *decoder) queryModel() (api.Response, error) {
	modelType, err := d.readString()
	if err != nil {
		return nil, err
	}
	probabilistic, err := d.readBool()
	if err != nil {
		return nil, err
	}
	ranking, err := d.readBool()
	if err != nil {
		return nil, err
	}
	return api.NewQueryModelResponse(modelType, probabilistic, ranking), nil
}

func (d *decoder) serverStatus() (api.Response, error) {
	start, err := d.readInt()
	if err != nil {
		return nil, err
	}
	pid, err := d.readInt()
	if err != nil {
		return nil, err
	}
	uptime, err := d.readInt()
	if err != nil {
		return nil, err
	}
	versions, err := d.labels()
	if err != nil {
		return nil, err
	}
	return api.NewServerStatusResponse(start, int(pid), uptime, versions), nil
}

func (d *decoder) errorResponse() (api.Response, error) {
	errType, err := d.readString()
	if err != nil {
		return nil, err
	}
	message, err := d.readString()
	if err != nil {
		return nil, err
	}
	return api.NewErrorResponse(api.ErrorType(errType), message), nil
}

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
