package codechat

import (
	"errors"
	"io"
	"strings"

	"github.com/flarexio/codechat/llm"
)

// Stream yields the fragments of one answer until io.EOF.
// A stream is consumed once; asking again issues a new generation request.
type Stream interface {
	Recv() (Fragment, error)
	Close() error
}

// NewSliceStream replays already generated fragments.
func NewSliceStream(fragments []Fragment) Stream {
	return &sliceStream{fragments: fragments}
}

type sliceStream struct {
	fragments []Fragment
}

func (s *sliceStream) Recv() (Fragment, error) {
	if len(s.fragments) == 0 {
		return Fragment{}, io.EOF
	}

	f := s.fragments[0]
	s.fragments = s.fragments[1:]
	return f, nil
}

func (s *sliceStream) Close() error {
	s.fragments = nil
	return nil
}

// answerStream emits the context fragments first, then the model tokens.
type answerStream struct {
	pending []Fragment
	tokens  llm.TokenStream
}

func (s *answerStream) Recv() (Fragment, error) {
	if len(s.pending) > 0 {
		f := s.pending[0]
		s.pending = s.pending[1:]
		return f, nil
	}

	token, err := s.tokens.Recv()
	if err != nil {
		return Fragment{}, err
	}

	return Fragment{FieldAnswer, token}, nil
}

func (s *answerStream) Close() error {
	return s.tokens.Close()
}

// Drain reads a stream to the end and closes it.
func Drain(s Stream) (AskResult, error) {
	defer s.Close()

	var (
		result AskResult
		answer strings.Builder
	)

	for {
		f, err := s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return AskResult{}, err
		}

		switch f.Field {
		case FieldContext:
			result.Sources = append(result.Sources, f.Text)
		case FieldAnswer:
			answer.WriteString(f.Text)
		}
	}

	result.Answer = answer.String()
	return result, nil
}

// Fragments turns a drained answer back into a stream.
func (r AskResult) Fragments() []Fragment {
	fragments := make([]Fragment, 0, len(r.Sources)+1)
	for _, source := range r.Sources {
		fragments = append(fragments, Fragment{FieldContext, source})
	}

	if r.Answer != "" {
		fragments = append(fragments, Fragment{FieldAnswer, r.Answer})
	}

	return fragments
}
