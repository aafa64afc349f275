// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package s3types

import "encoding/xml"

// ListBucketResult is the response for ListObjects. Both list-type=2
// requests and legacy v1 requests are answered with this shape.
type ListBucketResult struct {
	XMLName               xml.Name        `xml:"ListBucketResult" json:"-"`
	Xmlns                 string          `xml:"xmlns,attr" json:"-"`
	Name                  string          `xml:"Name" json:"name"`
	Prefix                string          `xml:"Prefix" json:"prefix"`
	Delimiter             string          `xml:"Delimiter,omitempty" json:"delimiter,omitempty"`
	MaxKeys               int             `xml:"MaxKeys" json:"maxKeys"`
	KeyCount              int             `xml:"KeyCount" json:"keyCount"`
	IsTruncated           bool            `xml:"IsTruncated" json:"isTruncated"`
	ContinuationToken     string          `xml:"ContinuationToken,omitempty" json:"continuationToken,omitempty"`
	NextContinuationToken string          `xml:"NextContinuationToken,omitempty" json:"nextContinuationToken,omitempty"`
	StartAfter            string          `xml:"StartAfter,omitempty" json:"startAfter,omitempty"`
	Contents              []ObjectContent `xml:"Contents" json:"contents"`
	CommonPrefixes        []CommonPrefix  `xml:"CommonPrefixes,omitempty" json:"commonPrefixes,omitempty"`
}

// ObjectContent represents an object in list responses
type ObjectContent struct {
	Key          string `xml:"Key" json:"key"`
	LastModified string `xml:"LastModified" json:"lastModified"`
	ETag         string `xml:"ETag" json:"etag"`
	Size         int64  `xml:"Size" json:"size"`
	StorageClass string `xml:"StorageClass" json:"storageClass"`
}

// CommonPrefix represents a common prefix in list responses (for delimiter)
type CommonPrefix struct {
	Prefix string `xml:"Prefix" json:"prefix"`
}

// CopyObjectResult is the response for CopyObject
type CopyObjectResult struct {
	XMLName      xml.Name `xml:"CopyObjectResult" json:"-"`
	Xmlns        string   `xml:"xmlns,attr" json:"-"`
	ETag         string   `xml:"ETag" json:"etag"`
	LastModified string   `xml:"LastModified" json:"lastModified"`
}

// DeleteResult is the response for DeleteObjects (bulk delete)
type DeleteResult struct {
	XMLName xml.Name        `xml:"DeleteResult" json:"-"`
	Xmlns   string          `xml:"xmlns,attr" json:"-"`
	Deleted []DeletedObject `xml:"Deleted" json:"deleted"`
	Errors  []DeleteError   `xml:"Error,omitempty" json:"errors,omitempty"`
}

// DeletedObject represents a successfully deleted key in DeleteResult
type DeletedObject struct {
	Key string `xml:"Key" json:"key"`
}

// DeleteError represents a per-key failure in DeleteResult
type DeleteError struct {
	Key     string `xml:"Key" json:"key"`
	Code    string `xml:"Code" json:"code"`
	Message string `xml:"Message" json:"message"`
}

// DeleteRequest is the request body for DeleteObjects
type DeleteRequest struct {
	XMLName xml.Name           `xml:"Delete"`
	Quiet   bool               `xml:"Quiet"`
	Objects []ObjectIdentifier `xml:"Object"`
}

// ObjectIdentifier names a key in a bulk delete request
type ObjectIdentifier struct {
	Key string `xml:"Key"`
}

// MoveObjectsResult is the response for the move_objects extension
type MoveObjectsResult struct {
	XMLName xml.Name `xml:"MoveObjectsResult" json:"-"`
	Xmlns   string   `xml:"xmlns,attr" json:"-"`
	Moved   int      `xml:"Moved" json:"moved"`
}
