// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package s3types

import "encoding/xml"

// InitiateMultipartUploadResult is the response for CreateMultipartUpload
type InitiateMultipartUploadResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult" json:"-"`
	Xmlns    string   `xml:"xmlns,attr,omitempty" json:"-"`
	Bucket   string   `xml:"Bucket" json:"bucket"`
	Key      string   `xml:"Key" json:"key"`
	UploadID string   `xml:"UploadId" json:"uploadId"`
}

// CompleteMultipartUploadRequest is the request body for CompleteMultipartUpload
type CompleteMultipartUploadRequest struct {
	XMLName xml.Name       `xml:"CompleteMultipartUpload"`
	Parts   []CompletePart `xml:"Part"`
}

// CompletePart represents a part in the complete request
type CompletePart struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

// CompleteMultipartUploadResult is the response for CompleteMultipartUpload
type CompleteMultipartUploadResult struct {
	XMLName  xml.Name `xml:"CompleteMultipartUploadResult" json:"-"`
	Xmlns    string   `xml:"xmlns,attr,omitempty" json:"-"`
	Location string   `xml:"Location" json:"location"`
	Bucket   string   `xml:"Bucket" json:"bucket"`
	Key      string   `xml:"Key" json:"key"`
	ETag     string   `xml:"ETag" json:"etag"`
}

// ListPartsResult is the response for ListParts
type ListPartsResult struct {
	XMLName          xml.Name   `xml:"ListPartsResult" json:"-"`
	Xmlns            string     `xml:"xmlns,attr,omitempty" json:"-"`
	Bucket           string     `xml:"Bucket" json:"bucket"`
	Key              string     `xml:"Key" json:"key"`
	UploadID         string     `xml:"UploadId" json:"uploadId"`
	StorageClass     string     `xml:"StorageClass" json:"storageClass"`
	PartNumberMarker int        `xml:"PartNumberMarker" json:"partNumberMarker"`
	MaxParts         int        `xml:"MaxParts" json:"maxParts"`
	IsTruncated      bool       `xml:"IsTruncated" json:"isTruncated"`
	Parts            []PartInfo `xml:"Part" json:"parts"`
}

// PartInfo represents a part in list responses
type PartInfo struct {
	PartNumber   int    `xml:"PartNumber" json:"partNumber"`
	LastModified string `xml:"LastModified" json:"lastModified"`
	ETag         string `xml:"ETag" json:"etag"`
	Size         int64  `xml:"Size" json:"size"`
}
