// Copyright (C) 2025 Jobathon
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Munzer2/Jobathon/backend/models"
)

// HTTPDirectory resolves users through the host platform's user API,
// authenticating with a service token.
type HTTPDirectory struct {
	baseURL      string
	serviceToken string
	client       *http.Client
}

func NewHTTPDirectory(baseURL, serviceToken string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL:      strings.TrimRight(baseURL, "/"),
		serviceToken: serviceToken,
		client:       &http.Client{Timeout: 5 * time.Second},
	}
}

func (d *HTTPDirectory) Lookup(ctx context.Context, userID string) (*models.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/api/users/"+userID, nil)
	if err != nil {
		return nil, fmt.Errorf("build user lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.serviceToken)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, models.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("user lookup: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Success bool        `json:"success"`
		Data    models.User `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode user lookup response: %w", err)
	}
	if !body.Success || body.Data.ID == "" {
		return nil, models.ErrNotFound
	}
	return &body.Data, nil
}
