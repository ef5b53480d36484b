package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ericfisherdev/travelerpub/internal/domain/model"
)

// searchPageSize is the largest page the search endpoint accepts.
const searchPageSize = 100

// Search returns the items matching the query. The portal's title search is
// fuzzy, so results are filtered to an exact (case-insensitive) title and an
// exact type. Pagination is followed until nextStart is -1.
func (c *Client) Search(ctx context.Context, query model.ItemQuery) ([]model.Item, error) {
	owner := query.Owner
	if owner == "" {
		owner = c.username
	}

	q := fmt.Sprintf(`title:%s AND owner:%s`, quoteSearchTerm(query.Title), owner)
	if query.Type != "" {
		q += ` AND type:` + quoteSearchTerm(string(query.Type))
	}

	var items []model.Item
	start := int64(1)
	for {
		params := url.Values{}
		params.Set("q", q)
		params.Set("num", strconv.Itoa(searchPageSize))
		params.Set("start", strconv.FormatInt(start, 10))

		body, err := c.get(ctx, c.rootURI+"/search", params)
		if err != nil {
			return nil, fmt.Errorf("search %s %q (start %d): %w", query.Type, query.Title, start, err)
		}

		for _, r := range gjson.GetBytes(body, "results").Array() {
			item := mapItem(r)
			if !strings.EqualFold(item.Title, query.Title) {
				continue
			}
			if query.Type != "" && item.Type != query.Type {
				continue
			}
			items = append(items, item)
		}

		next := gjson.GetBytes(body, "nextStart").Int()
		if next <= 0 || next <= start {
			break
		}
		start = next
	}

	if items == nil {
		items = []model.Item{}
	}

	slog.Debug("portal search complete", "query", q, "matches", len(items))
	return items, nil
}

// searchEscaper backslash-escapes the characters that end or escape a
// quoted search phrase.
var searchEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quoteSearchTerm quotes s as a single search phrase.
func quoteSearchTerm(s string) string {
	return `"` + searchEscaper.Replace(s) + `"`
}

// EnsureFolder returns the id of the user folder titled title, creating the
// folder when it does not exist yet.
func (c *Client) EnsureFolder(ctx context.Context, title string) (string, error) {
	if title == "" {
		return "", nil
	}

	body, err := c.get(ctx, c.userURL(), url.Values{})
	if err != nil {
		return "", fmt.Errorf("list folders of %s: %w", c.username, err)
	}
	for _, f := range gjson.GetBytes(body, "folders").Array() {
		if strings.EqualFold(f.Get("title").String(), title) {
			return f.Get("id").String(), nil
		}
	}

	form := url.Values{}
	form.Set("title", title)
	body, err = c.postForm(ctx, c.userURL("createFolder"), form)
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", title, err)
	}

	id := gjson.GetBytes(body, "folder.id").String()
	if id == "" {
		return "", fmt.Errorf("create folder %q: response has no folder id: %s", title, truncate(body, 300))
	}

	slog.Info("portal folder created", "title", title, "folder_id", id)
	return id, nil
}

// AddItem uploads dataPath as a new item. The markdown description is
// rendered to sanitized HTML before upload.
func (c *Client) AddItem(ctx context.Context, item model.NewItem, folderID, dataPath string) (model.Item, error) {
	fields := url.Values{}
	fields.Set("title", item.Title)
	fields.Set("type", string(item.Type))
	fields.Set("tags", strings.Join(item.Tags, ","))
	if item.Description != "" {
		fields.Set("description", RenderDescription(item.Description))
	}
	if item.Culture != "" {
		fields.Set("culture", item.Culture)
	}

	body, err := c.postFile(ctx, c.userURL(folderID, "addItem"), fields, dataPath)
	if err != nil {
		return model.Item{}, err
	}

	if !gjson.GetBytes(body, "success").Bool() {
		return model.Item{}, fmt.Errorf("add item %q was not successful: %s", item.Title, truncate(body, 300))
	}

	added := model.Item{
		ID:    gjson.GetBytes(body, "id").String(),
		Title: item.Title,
		Type:  item.Type,
		Owner: c.username,
	}
	slog.Info("portal item added", "item_id", added.ID, "title", added.Title, "type", added.Type)
	return added, nil
}

// UpdateItemData replaces the data file of an existing item.
func (c *Client) UpdateItemData(ctx context.Context, itemID, dataPath string) error {
	body, err := c.postFile(ctx, c.userURL("items", itemID, "update"), url.Values{}, dataPath)
	if err != nil {
		return fmt.Errorf("update item %s: %w", itemID, err)
	}
	if !gjson.GetBytes(body, "success").Bool() {
		return fmt.Errorf("update item %s was not successful: %s", itemID, truncate(body, 300))
	}

	slog.Info("portal item data updated", "item_id", itemID, "path", dataPath)
	return nil
}

// publishParameters is the JSON document sent as publishParameters.
type publishParameters struct {
	Name string `json:"name"`
}

// Publish starts publishing a hosted feature service from a file geodatabase item.
func (c *Client) Publish(ctx context.Context, req model.PublishRequest) (model.PublishResult, error) {
	params, err := json.Marshal(publishParameters{Name: req.ServiceName})
	if err != nil {
		return model.PublishResult{}, fmt.Errorf("marshal publish parameters: %w", err)
	}

	form := url.Values{}
	form.Set("itemId", req.ItemID)
	form.Set("filetype", "fileGeodatabase")
	form.Set("publishParameters", string(params))
	form.Set("overwrite", strconv.FormatBool(req.Overwrite))

	body, err := c.postForm(ctx, c.userURL("publish"), form)
	if err != nil {
		return model.PublishResult{}, err
	}

	services := gjson.GetBytes(body, "services").Array()
	if len(services) == 0 {
		return model.PublishResult{}, fmt.Errorf("publish response has no services: %s", truncate(body, 300))
	}
	svc := services[0]
	if err := decodeAPIError([]byte(svc.Raw)); err != nil {
		return model.PublishResult{}, err
	}

	result := model.PublishResult{
		ServiceItemID: svc.Get("serviceItemId").String(),
		ServiceURL:    svc.Get("serviceurl").String(),
		JobID:         svc.Get("jobId").String(),
	}
	if result.ServiceItemID == "" {
		return model.PublishResult{}, fmt.Errorf("publish response has no serviceItemId: %s", truncate(body, 300))
	}

	slog.Info("publish submitted",
		"item_id", req.ItemID,
		"service_item_id", result.ServiceItemID,
		"job_id", result.JobID,
		"overwrite", req.Overwrite,
	)
	return result, nil
}

// mapItem converts a search result entry to a domain Item.
func mapItem(r gjson.Result) model.Item {
	var modified time.Time
	if ms := r.Get("modified").Int(); ms > 0 {
		modified = time.UnixMilli(ms).UTC()
	}
	return model.Item{
		ID:       r.Get("id").String(),
		Title:    r.Get("title").String(),
		Type:     model.ItemType(r.Get("type").String()),
		Owner:    r.Get("owner").String(),
		URL:      r.Get("url").String(),
		Modified: modified,
	}
}
