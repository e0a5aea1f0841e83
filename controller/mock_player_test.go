package controller

import (
	"github.com/stretchr/testify/mock"

	"billy/models"
)

type MockPlayer struct {
	mock.Mock
}

func (m *MockPlayer) Load(track models.Track) error {
	args := m.Called(track)
	return args.Error(0)
}

func (m *MockPlayer) LoadAndPlay(track models.Track) error {
	args := m.Called(track)
	return args.Error(0)
}

func (m *MockPlayer) Play() {
	m.Called()
}

func (m *MockPlayer) Clear() {
	m.Called()
}

// nopPlayer accepts everything, for tests that only look at indexes.
type nopPlayer struct {
	loads, plays, clears int
	last                 models.Track
}

func (p *nopPlayer) Load(track models.Track) error {
	p.loads++
	p.last = track
	return nil
}

func (p *nopPlayer) LoadAndPlay(track models.Track) error {
	p.plays++
	p.last = track
	return nil
}

func (p *nopPlayer) Play()  {}
func (p *nopPlayer) Clear() { p.clears++ }
