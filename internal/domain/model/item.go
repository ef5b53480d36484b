package model

import "time"

// ItemType is the portal item type string.
type ItemType string

const (
	ItemTypeFileGeodatabase   ItemType = "File Geodatabase"
	ItemTypeFeatureService    ItemType = "Feature Service"
	ItemTypeFeatureCollection ItemType = "Feature Collection"
)

// Item is a hosted content item on the portal.
type Item struct {
	ID       string
	Title    string
	Type     ItemType
	Owner    string
	URL      string
	Modified time.Time
}

// ItemQuery selects items by exact title, owner and type.
type ItemQuery struct {
	Title string
	Owner string
	Type  ItemType
}

// NewItem describes an item to upload. Description is markdown; the content
// adapter renders it to HTML before sending.
type NewItem struct {
	Title       string
	Type        ItemType
	Tags        []string
	Description string
	Culture     string
	Folder      string
}

// PublishRequest asks the portal to publish a hosted service from an uploaded item.
type PublishRequest struct {
	ItemID      string
	ServiceName string
	Overwrite   bool
}

// PublishResult identifies the service item and the asynchronous job that
// builds it.
type PublishResult struct {
	ServiceItemID string
	ServiceURL    string
	JobID         string
}

// PublishSettings describes the items the sync workflow maintains. The file
// geodatabase, the feature service and the feature collection all share Title.
type PublishSettings struct {
	Title        string
	Folder       string
	Tags         []string
	Culture      string
	Description  string
	ServiceName  string
	ExportFormat string
}
