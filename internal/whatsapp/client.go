package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const requestTimeout = 15 * time.Second

// ProviderError is a normalized non-2xx response from the messaging API.
// The code and message come verbatim from the provider since they are
// usually actionable ("template not approved", expired token, ...).
type ProviderError struct {
	StatusCode int
	Code       int
	Type       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code != 0 || e.Message != "" {
		return fmt.Sprintf("whatsapp api error [%d]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("whatsapp api error: http %d", e.StatusCode)
}

// SendResult is the normalized outcome of a successful send.
type SendResult struct {
	MessageID string
	Timestamp string
}

// TemplateSummary is one entry of the provider's template registry.
type TemplateSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Category string `json:"category"`
	Language string `json:"language"`
}

// BusinessAccount is the read-only account metadata.
type BusinessAccount struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	TimezoneOffsetMin        int    `json:"timezone_offset_min"`
	MessageTemplateNamespace string `json:"message_template_namespace"`
}

// PhoneNumber is one registered sender of a business account.
type PhoneNumber struct {
	ID                 string `json:"id"`
	DisplayPhoneNumber string `json:"display_phone_number"`
	VerifiedName       string `json:"verified_name"`
	QualityRating      string `json:"quality_rating"`
}

// Client is a thin wrapper over the WhatsApp Cloud API. It holds no mutable
// state beyond its configuration; one instance is built per channel from the
// channel's access credential.
type Client struct {
	BaseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *zap.Logger
}

func NewClient(accessToken, baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://graph.facebook.com/v18.0"
	}
	return &Client{
		BaseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: requestTimeout},
		logger:      logger,
	}
}

// --- Wire structures ---

type outboundMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type,omitempty"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textObj     `json:"text,omitempty"`
	Template         *templateObj `json:"template,omitempty"`
	Image            *mediaObj    `json:"image,omitempty"`
	Video            *mediaObj    `json:"video,omitempty"`
	Audio            *mediaObj    `json:"audio,omitempty"`
	Document         *mediaObj    `json:"document,omitempty"`
}

type textObj struct {
	Body string `json:"body"`
}

type mediaObj struct {
	ID      string `json:"id,omitempty"`
	Link    string `json:"link,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type templateObj struct {
	Name       string         `json:"name"`
	Language   languageObj    `json:"language"`
	Components []componentObj `json:"components,omitempty"`
}

type languageObj struct {
	Code string `json:"code"`
}

type componentObj struct {
	Type       string         `json:"type"`
	Parameters []parameterObj `json:"parameters"`
}

type parameterObj struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID        string `json:"id"`
		Timestamp string `json:"timestamp"`
	} `json:"messages"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// sanitizePhoneNumber strips everything but digits so destinations are in
// the digits-only E.164-like form the API expects.
func sanitizePhoneNumber(phoneNumber string) string {
	return nonDigits.ReplaceAllString(phoneNumber, "")
}

// orderedTemplateParams serializes a {"1": ..., "2": ...} map positionally,
// sorted by numeric key, so placeholders line up regardless of map order.
func orderedTemplateParams(params map[string]string) []parameterObj {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})
	out := make([]parameterObj, 0, len(keys))
	for _, k := range keys {
		out = append(out, parameterObj{Type: "text", Text: params[k]})
	}
	return out
}

// --- Requests ---

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		perr := &ProviderError{StatusCode: resp.StatusCode}
		var parsed apiErrorBody
		if json.Unmarshal(respBody, &parsed) == nil {
			perr.Code = parsed.Error.Code
			perr.Type = parsed.Error.Type
			perr.Message = parsed.Error.Message
		}
		if perr.Message == "" {
			perr.Message = http.StatusText(resp.StatusCode)
		}
		return perr
	}

	if out != nil {
		return json.Unmarshal(respBody, out)
	}
	return nil
}

func (c *Client) send(ctx context.Context, phoneNumberID string, msg outboundMessage) (*SendResult, error) {
	return retrySend(ctx, c.logger, func() (*SendResult, error) {
		var resp sendResponse
		if err := c.doJSON(ctx, http.MethodPost, "/"+phoneNumberID+"/messages", msg, &resp); err != nil {
			return nil, err
		}
		if len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
			return nil, fmt.Errorf("invalid response from whatsapp api: missing message id")
		}
		return &SendResult{
			MessageID: resp.Messages[0].ID,
			Timestamp: resp.Messages[0].Timestamp,
		}, nil
	})
}

// ValidateConnection checks that the credential can read the business
// account. It fails closed: any transport or auth error yields false.
func (c *Client) ValidateConnection(ctx context.Context, wabaID string) bool {
	var info struct {
		ID string `json:"id"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/"+wabaID+"?fields=id,name", nil, &info)
	if err != nil {
		c.logger.Warn("connection validation failed", zap.String("waba_id", wabaID), zap.Error(err))
		return false
	}
	return info.ID == wabaID
}

// SendText sends a plain text message from the given sender.
func (c *Client) SendText(ctx context.Context, to, body, phoneNumberID string) (*SendResult, error) {
	msg := outboundMessage{
		MessagingProduct: "whatsapp",
		To:               sanitizePhoneNumber(to),
		Type:             "text",
		Text:             &textObj{Body: body},
	}
	return c.send(ctx, phoneNumberID, msg)
}

// SendTemplate sends an approved template, serializing parameters in
// positional order.
func (c *Client) SendTemplate(ctx context.Context, to, templateName string, params map[string]string, languageCode, phoneNumberID string) (*SendResult, error) {
	if languageCode == "" {
		languageCode = "en_US"
	}
	tmpl := &templateObj{
		Name:     templateName,
		Language: languageObj{Code: languageCode},
	}
	if ordered := orderedTemplateParams(params); len(ordered) > 0 {
		tmpl.Components = []componentObj{{Type: "body", Parameters: ordered}}
	}
	msg := outboundMessage{
		MessagingProduct: "whatsapp",
		To:               sanitizePhoneNumber(to),
		Type:             "template",
		Template:         tmpl,
	}
	return c.send(ctx, phoneNumberID, msg)
}

// SendMedia sends an image, video, audio or document by media id or link.
func (c *Client) SendMedia(ctx context.Context, to, mediaKind, mediaRef, caption, phoneNumberID string) (*SendResult, error) {
	media := &mediaObj{Caption: caption}
	if len(mediaRef) > 4 && (mediaRef[:4] == "http") {
		media.Link = mediaRef
	} else {
		media.ID = mediaRef
	}
	msg := outboundMessage{
		MessagingProduct: "whatsapp",
		To:               sanitizePhoneNumber(to),
		Type:             mediaKind,
	}
	switch mediaKind {
	case "image":
		msg.Image = media
	case "video":
		msg.Video = media
	case "audio":
		media.Caption = ""
		msg.Audio = media
	case "document":
		msg.Document = media
	default:
		return nil, fmt.Errorf("unsupported media kind %q", mediaKind)
	}
	return c.send(ctx, phoneNumberID, msg)
}

// GetTemplates fetches the provider-side template registry.
func (c *Client) GetTemplates(ctx context.Context, wabaID string) ([]TemplateSummary, error) {
	var resp struct {
		Data []TemplateSummary `json:"data"`
	}
	path := "/" + wabaID + "/message_templates?fields=id,name,status,category,language"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) GetAccountInfo(ctx context.Context, wabaID string) (*BusinessAccount, error) {
	var account BusinessAccount
	path := "/" + wabaID + "?fields=id,name,timezone_offset_min,message_template_namespace"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) GetPhoneNumbers(ctx context.Context, wabaID string) ([]PhoneNumber, error) {
	var resp struct {
		Data []PhoneNumber `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/"+wabaID+"/phone_numbers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// MarkRead flags an inbound message as read on the provider side.
func (c *Client) MarkRead(ctx context.Context, providerMessageID, phoneNumberID string) error {
	payload := map[string]string{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        providerMessageID,
	}
	return c.doJSON(ctx, http.MethodPost, "/"+phoneNumberID+"/messages", payload, nil)
}

// GetMediaURL resolves a media id to its short-lived download URL.
func (c *Client) GetMediaURL(ctx context.Context, mediaID string) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/"+mediaID, nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// DownloadMedia fetches media bytes from a URL returned by GetMediaURL.
// The URL is absolute, so this bypasses BaseURL.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return io.ReadAll(resp.Body)
}
