package insights

import (
	"time"

	"github.com/vinodismyname/shopperinsights/internal/analytics"
	"github.com/vinodismyname/shopperinsights/internal/datasets"
)

// DatasetRef selects a loaded dataset by id, or loads one by path on demand.
type DatasetRef struct {
	DatasetID string `json:"dataset_id,omitempty" validate:"required_without=Path" jsonschema_description:"Dataset handle from open_dataset; takes precedence over path"`
	Path      string `json:"path,omitempty" validate:"omitempty,dataset_ext" jsonschema_description:"Clickstream file (.csv, .xlsx, .xlsm) under an allowed directory; opened and cached when no dataset_id is given"`
	Sheet     string `json:"sheet,omitempty" jsonschema_description:"Worksheet for workbook files; defaults to the first sheet"`
}

// Meta identifies the dataset an answer was computed from.
type Meta struct {
	DatasetID string `json:"dataset_id"`
	Source    string `json:"source"`
	Rows      int    `json:"rows"`
	Sessions  int    `json:"sessions"`
	Users     int    `json:"users"`
}

// PageMeta captures paging metadata.
type PageMeta struct {
	Total      int    `json:"total"`
	Offset     int    `json:"offset"`
	Returned   int    `json:"returned"`
	Truncated  bool   `json:"truncated"`
	NextCursor string `json:"next_cursor,omitempty"`
}

type OpenDatasetInput struct {
	Path  string `json:"path" validate:"required,dataset_ext" jsonschema_description:"Clickstream file (.csv, .xlsx, .xlsm) under an allowed directory"`
	Sheet string `json:"sheet,omitempty" jsonschema_description:"Worksheet for workbook files; defaults to the first sheet"`
}

type OpenDatasetOutput struct {
	datasets.Info
	Reused          bool `json:"reused" jsonschema_description:"True when the file was already open and the cached handle was returned"`
	MaxPayloadBytes int  `json:"max_payload_bytes" jsonschema_description:"Largest structured response the server returns"`
	PageSize        int  `json:"page_size" jsonschema_description:"Default page size for segment_users"`
}

type CloseDatasetInput struct {
	DatasetID string `json:"dataset_id" validate:"required" jsonschema_description:"Dataset handle to release"`
}

type CloseDatasetOutput struct {
	Success bool `json:"success" jsonschema_description:"True when the handle was closed"`
}

type ListDatasetsInput struct{}

type ListDatasetsOutput struct {
	Datasets []datasets.Info `json:"datasets"`
	Capacity int             `json:"capacity" jsonschema_description:"Maximum datasets held at once"`
}

// SessionMetricsInput takes a dataset reference or a cursor from a previous
// page of per-session rows.
type SessionMetricsInput struct {
	DatasetID       string `json:"dataset_id,omitempty" validate:"required_without_all=Path Cursor" jsonschema_description:"Dataset handle from open_dataset; takes precedence over path"`
	Path            string `json:"path,omitempty" validate:"omitempty,dataset_ext" jsonschema_description:"Clickstream file (.csv, .xlsx, .xlsm) under an allowed directory"`
	Sheet           string `json:"sheet,omitempty" jsonschema_description:"Worksheet for workbook files; defaults to the first sheet"`
	IncludeSessions bool   `json:"include_sessions,omitempty" jsonschema_description:"Also return per-session statistics, one page at a time"`
	Limit           int    `json:"limit,omitempty" validate:"omitempty,min=1,max=1000" jsonschema_description:"Per-session rows per page when include_sessions is set"`
	Cursor          string `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Continuation token from a previous page of sessions; implies include_sessions"`
}

// Ref returns the dataset reference of the first page.
func (in SessionMetricsInput) Ref() DatasetRef {
	return DatasetRef{DatasetID: in.DatasetID, Path: in.Path, Sheet: in.Sheet}
}

type SessionMetricsOutput struct {
	Meta     Meta                     `json:"meta"`
	Summary  analytics.SessionSummary `json:"summary"`
	Sessions []analytics.SessionStats `json:"sessions,omitempty"`
	Page     *PageMeta                `json:"page,omitempty"`
}

type PathAnalysisInput struct {
	DatasetRef
	FocusCategory string `json:"focus_category,omitempty" jsonschema_description:"Category ranked first in click_patterns (default Electronics)"`
}

type PathAnalysisOutput struct {
	Meta  Meta                  `json:"meta"`
	Paths analytics.PathSummary `json:"paths"`
}

type FunnelAnalysisInput struct {
	DatasetRef
}

type FunnelAnalysisOutput struct {
	Meta   Meta             `json:"meta"`
	Funnel analytics.Funnel `json:"funnel"`
}

// ClusterOptions are shared by tools that segment users.
type ClusterOptions struct {
	Clusters int     `json:"clusters,omitempty" validate:"omitempty,min=1,max=20" jsonschema_description:"Number of segments (default 4)"`
	Seed     *uint64 `json:"seed,omitempty" jsonschema_description:"Clustering seed (default 42); the same seed yields the same labels"`
}

// Segment translates the tool options to analytics options.
func (c ClusterOptions) Segment() analytics.SegmentOptions {
	opts := analytics.DefaultSegmentOptions()
	if c.Clusters > 0 {
		opts.Clusters = c.Clusters
	}
	if c.Seed != nil {
		opts.Seed = *c.Seed
	}
	return opts
}

// SegmentUsersInput takes a dataset reference or a cursor from a previous page.
type SegmentUsersInput struct {
	DatasetID string `json:"dataset_id,omitempty" validate:"required_without_all=Path Cursor" jsonschema_description:"Dataset handle from open_dataset; takes precedence over path"`
	Path      string `json:"path,omitempty" validate:"omitempty,dataset_ext" jsonschema_description:"Clickstream file (.csv, .xlsx, .xlsm) under an allowed directory"`
	Sheet     string `json:"sheet,omitempty" jsonschema_description:"Worksheet for workbook files; defaults to the first sheet"`
	ClusterOptions
	Cursor   string `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Continuation token from a previous page; overrides dataset, clusters and seed"`
	PageSize int    `json:"page_size,omitempty" validate:"omitempty,min=1,max=1000" jsonschema_description:"Assignments per page"`
}

// Ref returns the dataset reference of the first page.
func (in SegmentUsersInput) Ref() DatasetRef {
	return DatasetRef{DatasetID: in.DatasetID, Path: in.Path, Sheet: in.Sheet}
}

type SegmentUsersOutput struct {
	Meta        Meta                       `json:"meta"`
	Clusters    int                        `json:"clusters"`
	Seed        uint64                     `json:"seed"`
	Inertia     float64                    `json:"inertia"`
	Profiles    []analytics.SegmentProfile `json:"segment_profiles"`
	Assignments []analytics.Assignment     `json:"segments"`
	Page        PageMeta                   `json:"page"`
}

type KeyMetricsInput struct {
	DatasetRef
}

type KeyMetricsOutput struct {
	Meta    Meta              `json:"meta"`
	Metrics analytics.Metrics `json:"key_metrics"`
}

type BehaviorProfileInput struct {
	DatasetRef
}

type BehaviorProfileOutput struct {
	Meta          Meta               `json:"meta"`
	Behavior      analytics.Behavior `json:"user_behavior"`
	Sales         analytics.Sales    `json:"product_sales"`
	PageTimeSpans []analytics.Value  `json:"page_time_spans"`
	AvgTimeByPage float64            `json:"avg_time_by_page"`
}

type ReportInput struct {
	DatasetRef
	ClusterOptions
	AllowPartial bool `json:"allow_partial,omitempty" jsonschema_description:"Report segmentation shortfalls as warnings instead of failing"`
}

type ReportOutput struct {
	Meta   Meta             `json:"meta"`
	Report analytics.Report `json:"report"`
}

type ExportReportInput struct {
	DatasetRef
	ClusterOptions
	Output       string `json:"output" validate:"required,export_ext" jsonschema_description:"Destination .xlsx path under an allowed directory"`
	AllowPartial bool   `json:"allow_partial,omitempty" jsonschema_description:"Export even when segmentation lacks data"`
}

type ExportReportOutput struct {
	Meta      Meta      `json:"meta"`
	Path      string    `json:"path"`
	Sheets    []string  `json:"sheets"`
	Warnings  []string  `json:"warnings,omitempty"`
	WrittenAt time.Time `json:"written_at"`
}
