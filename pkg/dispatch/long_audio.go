package dispatch

import (
	"context"
	"errors"

	"github.com/harunnryd/voxa/pkg/configutil"
	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/segment"
)

// Metadata summarizes the segmentation behind a LongAudio.
type Metadata struct {
	TotalWords            int     `json:"total_words"`
	TotalEstimatedSeconds float64 `json:"total_estimated_seconds"`
	WasSegmented          bool    `json:"was_segmented"`
	WasTruncated          bool    `json:"was_truncated"`
	DroppedWords          int     `json:"dropped_words,omitempty"`
}

// LongAudio is a fully generated response. AudioURLs is index-aligned with
// Segments.
type LongAudio struct {
	Segments  []segment.AudioSegment `json:"segments"`
	AudioURLs []string               `json:"audio_urls"`
	Results   []SegmentAudio         `json:"results"`
	Metadata  Metadata               `json:"metadata"`
}

// LongAudioRequest is the full form of ProcessAndGenerateLongAudio.
type LongAudioRequest struct {
	Text      string
	Mode      segment.Mode
	Voice     string
	Provider  string
	SessionID string
	// Config overrides the dispatcher's segmentation config when set.
	Config *segment.Config
	// SSMLFallback overrides Options.SSMLFallback when set.
	SSMLFallback *bool
}

// ProcessAndGenerateLongAudio segments text and generates audio for every segment.
func (d *Dispatcher) ProcessAndGenerateLongAudio(ctx context.Context, text string, mode segment.Mode, voice string, cfg *segment.Config) (LongAudio, error) {
	return d.ProcessAndGenerate(ctx, LongAudioRequest{Text: text, Mode: mode, Voice: voice, Config: cfg})
}

func (d *Dispatcher) ProcessAndGenerate(ctx context.Context, req LongAudioRequest) (LongAudio, error) {
	cfg := d.opts.Segment
	if req.Config != nil {
		cfg = *req.Config
	}
	res, err := segment.ProcessLongAudio(req.Text, req.Mode, cfg)
	if err != nil {
		return LongAudio{}, errorsx.Wrap(err, segmentReason(err))
	}
	fallback := configutil.BoolValue(req.SSMLFallback, d.opts.SSMLFallback)
	audio, err := d.GenerateSegmentAudio(ctx, res.Segments, req.Voice, GenerateOptions{
		Provider:     req.Provider,
		SSMLFallback: fallback,
		Mode:         req.Mode,
		SessionID:    req.SessionID,
	})
	if err != nil {
		return LongAudio{}, err
	}
	urls := make([]string, len(audio))
	for i, a := range audio {
		urls[i] = a.AudioURL
	}
	return LongAudio{
		Segments:  res.Segments,
		AudioURLs: urls,
		Results:   audio,
		Metadata: Metadata{
			TotalWords:            res.TotalWords(),
			TotalEstimatedSeconds: res.TotalEstimatedSeconds,
			WasSegmented:          res.WasSegmented,
			WasTruncated:          res.WasTruncated,
			DroppedWords:          res.DroppedWords,
		},
	}, nil
}

func segmentReason(err error) errorsx.ReasonCode {
	if errors.Is(err, segment.ErrInvalidConfig) {
		return errorsx.ReasonSegmentConfig
	}
	return errorsx.ReasonSegmentInput
}
