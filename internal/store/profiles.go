package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Document and key names for saved connections.
const (
	ConnectionsDocument = "connections"
	ConnectionsKey      = "connections"
)

// Profile is a saved connection. The password is stored only as a blob
// produced by the secret package.
type Profile struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Host              string     `json:"host"`
	Port              uint16     `json:"port"`
	Database          string     `json:"database"`
	Username          string     `json:"username"`
	EncryptedPassword string     `json:"encryptedPassword"`
	LastUsed          *time.Time `json:"lastUsed"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// Profiles returns saved profiles in insertion order.
// An unreadable stored value is treated as empty.
func (s *Store) Profiles(ctx context.Context) ([]Profile, error) {
	var profiles []Profile
	if err := getList(ctx, s.Document(ConnectionsDocument), ConnectionsKey, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// SaveProfiles replaces the full profile list.
func (s *Store) SaveProfiles(ctx context.Context, profiles []Profile) error {
	if profiles == nil {
		profiles = []Profile{}
	}
	doc := s.Document(ConnectionsDocument)
	if err := doc.Set(ConnectionsKey, profiles); err != nil {
		return err
	}
	return doc.Save(ctx)
}

// AddProfile appends p to the saved profiles.
func (s *Store) AddProfile(ctx context.Context, p Profile) error {
	s.update.Lock()
	defer s.update.Unlock()

	profiles, err := s.Profiles(ctx)
	if err != nil {
		return err
	}
	return s.SaveProfiles(ctx, append(profiles, p))
}

// FindProfile returns the profile with the given id, or ErrNotFound.
func (s *Store) FindProfile(ctx context.Context, id string) (Profile, error) {
	profiles, err := s.Profiles(ctx)
	if err != nil {
		return Profile{}, err
	}
	for _, p := range profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("connection %q: %w", id, ErrNotFound)
}

// DeleteProfile removes the profile with the given id. Deleting an unknown
// id is not an error.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	s.update.Lock()
	defer s.update.Unlock()

	profiles, err := s.Profiles(ctx)
	if err != nil {
		return err
	}
	kept := profiles[:0]
	for _, p := range profiles {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	return s.SaveProfiles(ctx, kept)
}

// TouchProfile sets LastUsed on the profile with the given id.
func (s *Store) TouchProfile(ctx context.Context, id string, at time.Time) error {
	s.update.Lock()
	defer s.update.Unlock()

	profiles, err := s.Profiles(ctx)
	if err != nil {
		return err
	}
	for i := range profiles {
		if profiles[i].ID == id {
			t := at
			profiles[i].LastUsed = &t
			return s.SaveProfiles(ctx, profiles)
		}
	}
	return fmt.Errorf("connection %q: %w", id, ErrNotFound)
}

// getList loads a JSON list, treating a missing or undecodable value as
// empty. Only storage failures are returned.
func getList[T any](ctx context.Context, doc *Document, key string, dst *[]T) error {
	found, err := doc.Get(ctx, key, dst)
	if err != nil {
		if !found {
			return err
		}
		slog.Warn("discarding unreadable stored value", "document", doc.Name(), "key", key, "error", err)
		*dst = nil
	}
	if *dst == nil {
		*dst = []T{}
	}
	return nil
}
