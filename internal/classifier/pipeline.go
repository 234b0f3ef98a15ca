package classifier

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/Brownie44l1/chillbot/internal/codec"
	"github.com/Brownie44l1/chillbot/internal/facts"
	"github.com/Brownie44l1/chillbot/internal/model"
	"github.com/Brownie44l1/chillbot/internal/selector"
)

// Pipeline is the synchronous part of a cycle: preprocess, encode, infer,
// decode, select, extract.
type Pipeline struct {
	Codec         *codec.Codec
	Executor      Executor
	Vocabulary    model.Vocabulary
	Preprocessor  Preprocessor // optional
	Width, Height int
	MaxResults    int
	MinConfidence float32
	Threshold     float32
	Interest      []facts.Interest
}

// NewPipeline returns a pipeline with the drinks defaults.
func NewPipeline(exec Executor, vocab model.Vocabulary, pre Preprocessor) *Pipeline {
	return &Pipeline{
		Codec:         codec.New(codec.UnitRange),
		Executor:      exec,
		Vocabulary:    vocab,
		Preprocessor:  pre,
		Width:         codec.ImageSize,
		Height:        codec.ImageSize,
		MaxResults:    selector.DefaultMaxResults,
		MinConfidence: selector.DefaultMinConfidence,
		Threshold:     facts.DefaultThreshold,
		Interest:      facts.DefaultInterest,
	}
}

func (p *Pipeline) validate() error {
	switch {
	case p.Codec == nil:
		return errors.New("pipeline: codec is required")
	case p.Executor == nil:
		return errors.New("pipeline: executor is required")
	case len(p.Vocabulary) == 0:
		return errors.New("pipeline: vocabulary is empty")
	case p.Width <= 0 || p.Height <= 0:
		return fmt.Errorf("pipeline: invalid input size %dx%d", p.Width, p.Height)
	}
	return nil
}

// Classify runs the pipeline on one captured frame. Executor failures are
// wrapped in *model.ExecutorError.
func (p *Pipeline) Classify(img image.Image) (Result, error) {
	start := time.Now()
	if p.Preprocessor != nil {
		img = p.Preprocessor.Fit(img)
	}
	tensor, err := p.Codec.Encode(img, p.Width, p.Height)
	if err != nil {
		return Result{}, err
	}
	scores, err := p.Executor.Run(tensor)
	if err != nil {
		var execErr *model.ExecutorError
		if !errors.As(err, &execErr) {
			err = &model.ExecutorError{Err: err}
		}
		return Result{}, err
	}
	recs, err := p.Codec.Decode(scores, p.Vocabulary)
	if err != nil {
		return Result{}, err
	}
	selected := selector.SelectBest(recs, p.MaxResults, p.MinConfidence)
	return Result{
		Recognitions: selected,
		Facts:        facts.Extract(selected, p.Interest, p.Threshold),
		Summary:      FormatResults(selected),
		Duration:     time.Since(start),
		CompletedAt:  time.Now(),
	}, nil
}
