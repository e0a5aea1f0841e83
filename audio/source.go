package audio

import (
	"context"
	"fmt"
	"sync"
)

// Resolver turns a page URL into a URL ffmpeg can read.
type Resolver func(ctx context.Context, pageURL string) (string, error)

// ResolvingSource resolves the job URL before handing it to Next. The last
// resolution is reused so that seeking does not go through the resolver
// again.
type ResolvingSource struct {
	Resolve Resolver
	Next    Source

	mutex    sync.Mutex
	lastPage string
	lastURL  string
}

func NewResolvingSource(resolve Resolver, next Source) *ResolvingSource {
	return &ResolvingSource{Resolve: resolve, Next: next}
}

func (s *ResolvingSource) Load(ctx context.Context, job LoadJob) (*LoadResult, error) {
	s.mutex.Lock()
	cached := ""
	if s.lastPage == job.URL {
		cached = s.lastURL
	}
	s.mutex.Unlock()

	if cached == "" {
		resolved, err := s.Resolve(ctx, job.URL)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", job.URL, err)
		}
		s.mutex.Lock()
		s.lastPage, s.lastURL = job.URL, resolved
		s.mutex.Unlock()
		cached = resolved
	}

	job.URL = cached
	result, err := s.Next.Load(ctx, job)
	if err != nil && ctx.Err() == nil {
		// Stream URLs expire, resolve again next time.
		s.mutex.Lock()
		if s.lastURL == cached {
			s.lastPage, s.lastURL = "", ""
		}
		s.mutex.Unlock()
	}
	return result, err
}
