package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/keyvox/keyvox/pkg/voiceprint"
)

// legacyUser matches the field names used by every historical users.json
// variant. Password fields are deliberately not carried over.
type legacyUser struct {
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	VoiceStatus   string `json:"voice_status"`
	VoiceprintRef string `json:"voiceprint_path"`
}

func (u legacyUser) record() Record {
	return Record{
		Username: voiceprint.CanonicalUsername(u.Username),
		FullName: strings.TrimSpace(u.FullName),
		Email:    strings.TrimSpace(u.Email),
		VoiceEnrolled: strings.EqualFold(u.VoiceStatus, "Enrolled") ||
			u.VoiceprintRef != "",
	}
}

// ImportLegacyJSON normalizes a legacy users.json payload into the store
// and returns the imported records. It accepts every shape older
// deployments produced:
//
//   - {"enrolled_users": [ {...}, ... ]}
//   - [ {...}, ... ]  (a bare list of user objects)
//   - { "<id>": {...}, ... }  (a map keyed by id or username)
//
// Entries without a username are skipped. Existing profiles for the same
// username are overwritten; this is a one-time migration, not a merge.
func ImportLegacyJSON(ctx context.Context, s Store, data []byte) ([]Record, error) {
	users, err := decodeLegacy(data)
	if err != nil {
		return nil, err
	}
	var imported []Record
	for _, u := range users {
		rec := u.record()
		if rec.Username == "" {
			continue
		}
		if err := s.Put(ctx, rec); err != nil {
			return imported, fmt.Errorf("profile: import %q: %w", rec.Username, err)
		}
		imported = append(imported, rec)
	}
	return imported, nil
}

func decodeLegacy(data []byte) ([]legacyUser, error) {
	// Wrapper object: {"enrolled_users": [...]}.
	var wrapped struct {
		EnrolledUsers []legacyUser `json:"enrolled_users"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.EnrolledUsers != nil {
		return wrapped.EnrolledUsers, nil
	}

	// Bare list of user objects.
	var list []legacyUser
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	// Map keyed by id or username. The key wins only when the entry
	// itself has no username field.
	var byID map[string]legacyUser
	if err := json.Unmarshal(data, &byID); err == nil {
		users := make([]legacyUser, 0, len(byID))
		for id, u := range byID {
			if u.Username == "" {
				u.Username = id
			}
			users = append(users, u)
		}
		return users, nil
	}

	return nil, fmt.Errorf("profile: unrecognized legacy users format")
}
