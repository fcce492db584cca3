package media

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrNoSeedData is returned when a profile document carries no embedded data.
	ErrNoSeedData = errors.New("page did not include profile data")

	// ErrNoUser is returned when the embedded data holds no profile page.
	ErrNoUser = errors.New("no user found in profile data")
)

const (
	sharedDataPrefix = `<script type="text/javascript">window._sharedData = `
	sharedDataSuffix = `;</script>`
)

// Profile is the user record embedded in a profile document.
type Profile struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Biography     string   `json:"biography"`
	ProfilePicURL string   `json:"profile_pic_url_hd"`
	Timeline      Timeline `json:"edge_owner_to_timeline_media"`
}

// SeedPage returns the first page of media embedded in the profile.
func (p *Profile) SeedPage() Page {
	return p.Timeline.Page()
}

type sharedData struct {
	EntryData *struct {
		ProfilePage []struct {
			GraphQL struct {
				User Profile `json:"user"`
			} `json:"graphql"`
		} `json:"ProfilePage"`
	} `json:"entry_data"`
}

// ParseProfile extracts the profile from an HTML profile document. The first
// line that decodes as embedded shared data is used.
func ParseProfile(doc []byte) (*Profile, error) {
	scanner := bufio.NewScanner(bytes.NewReader(doc))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, sharedDataPrefix)
		line = strings.TrimSuffix(line, sharedDataSuffix)

		var data sharedData
		if err := json.Unmarshal([]byte(line), &data); err != nil {
			continue
		}
		if data.EntryData == nil {
			continue
		}

		if len(data.EntryData.ProfilePage) == 0 {
			return nil, ErrNoUser
		}
		user := data.EntryData.ProfilePage[0].GraphQL.User
		return &user, nil
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNoSeedData
}
