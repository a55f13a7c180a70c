// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianGather/cmd/gather/config"
)

// Wire types mirroring the rsvp server's JSON contract.

type statusRequest struct {
	UserID       string `json:"userId"`
	AttendeeID   string `json:"attendeeId,omitempty"`
	AttendeeType string `json:"attendeeType,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	Status       string `json:"status"`
}

type statusResponse struct {
	AttendeeID       string `json:"attendeeId"`
	Status           string `json:"status"`
	WaitlistPosition *int   `json:"waitlistPosition,omitempty"`
	Created          bool   `json:"created"`
	Changed          bool   `json:"changed"`
}

type waitlistRequest struct {
	UserID string `json:"userId"`
}

type joinWaitlistResponse struct {
	Position int `json:"position"`
}

type positionResponse struct {
	Position *int `json:"position"`
}

type recalculateResponse struct {
	Count int `json:"count"`
}

type waitlistEntry struct {
	Position    int       `json:"position"`
	AttendeeID  string    `json:"attendeeId"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
}

type waitlistResponse struct {
	EventID string          `json:"eventId"`
	Entries []waitlistEntry `json:"entries"`
}

type statusChangeView struct {
	Status    string    `json:"status"`
	ChangedBy string    `json:"changedBy"`
	ChangedAt time.Time `json:"changedAt"`
}

type attendeeResponse struct {
	AttendeeID       string             `json:"attendeeId"`
	EventID          string             `json:"eventId"`
	UserID           string             `json:"userId"`
	AttendeeType     string             `json:"attendeeType"`
	DisplayName      string             `json:"displayName,omitempty"`
	Status           string             `json:"status"`
	WaitlistPosition *int               `json:"waitlistPosition,omitempty"`
	PromotedAt       *time.Time         `json:"promotedAt,omitempty"`
	History          []statusChangeView `json:"history"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

type eventConfigRequest struct {
	Capacity        *int `json:"capacity"`
	WaitlistEnabled bool `json:"waitlistEnabled"`
}

type eventConfigResponse struct {
	EventID         string    `json:"eventId"`
	Capacity        *int      `json:"capacity"`
	WaitlistEnabled bool      `json:"waitlistEnabled"`
	GoingCount      int       `json:"goingCount"`
	HasRoom         bool      `json:"hasRoom"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type purgeResponse struct {
	EventID string `json:"eventId"`
	Removed int    `json:"removed"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type readyResponse struct {
	Ready   bool `json:"ready"`
	StoreOK bool `json:"store_ok"`
	CacheOK bool `json:"cache_ok"`
}

type apiError struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// apiClient is a thin JSON client for the rsvp server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

// newAPIClient resolves the server URL and timeout. Resolution order for
// the URL: --server flag, GATHER_SERVER_URL, ~/.gather/gather.yaml.
func newAPIClient() *apiClient {
	baseURL := serverURL
	if baseURL == "" {
		baseURL = os.Getenv("GATHER_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = config.Global.Server.BaseURL
	}
	timeout := time.Duration(config.Global.Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &apiClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// call sends one JSON request and decodes the response into out.
// A nil payload sends no body; a nil out discards the body. Non-2xx
// responses are turned into errors carrying the server's message.
func (c *apiClient) call(method, path string, headers map[string]string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach the rsvp server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Code != "" {
				return fmt.Errorf("%s (%s)", apiErr.Error, apiErr.Code)
			}
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse server response: %w", err)
	}
	return nil
}

func (c *apiClient) setRSVP(eventID string, req statusRequest) (statusResponse, error) {
	var resp statusResponse
	err := c.call(http.MethodPut, "/v1/events/"+eventID+"/rsvp", nil, req, &resp)
	return resp, err
}

func (c *apiClient) joinWaitlist(eventID, user string) (joinWaitlistResponse, error) {
	var resp joinWaitlistResponse
	err := c.call(http.MethodPost, "/v1/events/"+eventID+"/waitlist/join", nil, waitlistRequest{UserID: user}, &resp)
	return resp, err
}

func (c *apiClient) leaveWaitlist(eventID, user string) error {
	return c.call(http.MethodPost, "/v1/events/"+eventID+"/waitlist/leave", nil, waitlistRequest{UserID: user}, nil)
}

func (c *apiClient) waitlistPosition(eventID, user string) (positionResponse, error) {
	var resp positionResponse
	err := c.call(http.MethodGet, "/v1/events/"+eventID+"/waitlist/position?userId="+user, nil, nil, &resp)
	return resp, err
}

func (c *apiClient) waitlist(eventID string) (waitlistResponse, error) {
	var resp waitlistResponse
	err := c.call(http.MethodGet, "/v1/events/"+eventID+"/waitlist", nil, nil, &resp)
	return resp, err
}

func (c *apiClient) recalculate(eventID string) (recalculateResponse, error) {
	var resp recalculateResponse
	err := c.call(http.MethodPost, "/v1/events/"+eventID+"/waitlist/recalculate", nil, nil, &resp)
	return resp, err
}

func (c *apiClient) attendee(eventID, attendee string) (attendeeResponse, error) {
	var resp attendeeResponse
	err := c.call(http.MethodGet, "/v1/events/"+eventID+"/attendees/"+attendee, nil, nil, &resp)
	return resp, err
}

func (c *apiClient) withdraw(eventID, attendee, actor string) error {
	var headers map[string]string
	if actor != "" {
		headers = map[string]string{"X-User-ID": actor}
	}
	return c.call(http.MethodDelete, "/v1/events/"+eventID+"/attendees/"+attendee, headers, nil, nil)
}

func (c *apiClient) setEventConfig(eventID string, req eventConfigRequest) (eventConfigResponse, error) {
	var resp eventConfigResponse
	err := c.call(http.MethodPut, "/v1/events/"+eventID+"/config", nil, req, &resp)
	return resp, err
}

func (c *apiClient) eventConfig(eventID string) (eventConfigResponse, error) {
	var resp eventConfigResponse
	err := c.call(http.MethodGet, "/v1/events/"+eventID+"/config", nil, nil, &resp)
	return resp, err
}

func (c *apiClient) purgeEvent(eventID string) (purgeResponse, error) {
	var resp purgeResponse
	err := c.call(http.MethodDelete, "/v1/events/"+eventID, nil, nil, &resp)
	return resp, err
}

func (c *apiClient) health() (healthResponse, error) {
	var resp healthResponse
	err := c.call(http.MethodGet, "/health", nil, nil, &resp)
	return resp, err
}

func (c *apiClient) ready() (readyResponse, error) {
	var resp readyResponse
	httpResp, err := c.http.Get(c.baseURL + "/ready")
	if err != nil {
		return resp, fmt.Errorf("could not reach the rsvp server at %s: %w", c.baseURL, err)
	}
	defer httpResp.Body.Close()

	// 200 and 503 both carry a readiness body.
	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusServiceUnavailable {
		raw, _ := io.ReadAll(httpResp.Body)
		return resp, fmt.Errorf("server returned status %d: %s", httpResp.StatusCode, string(raw))
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return resp, fmt.Errorf("failed to parse server response: %w", err)
	}
	return resp, nil
}
