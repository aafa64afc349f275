package s3types

import "encoding/xml"

// ListAllMyBucketsResult is the response for ListBuckets
type ListAllMyBucketsResult struct {
	XMLName xml.Name    `xml:"ListAllMyBucketsResult" json:"-"`
	Xmlns   string      `xml:"xmlns,attr" json:"-"`
	Owner   BucketOwner `xml:"Owner" json:"owner"`
	Buckets BucketList  `xml:"Buckets" json:"buckets"`
}

// BucketOwner represents owner info in bucket responses
type BucketOwner struct {
	ID          string `xml:"ID" json:"id"`
	DisplayName string `xml:"DisplayName" json:"displayName"`
}

// BucketList is a list of buckets
type BucketList struct {
	Buckets []BucketInfo `xml:"Bucket" json:"bucket"`
}

// BucketInfo represents a bucket in list responses
type BucketInfo struct {
	Name         string `xml:"Name" json:"name"`
	CreationDate string `xml:"CreationDate" json:"creationDate"`
}

// CreateBucketConfiguration is the optional request body for CreateBucket
type CreateBucketConfiguration struct {
	XMLName            xml.Name `xml:"CreateBucketConfiguration"`
	LocationConstraint string   `xml:"LocationConstraint"`
}

// LocationConstraint is the response for GetBucketLocation
type LocationConstraint struct {
	XMLName  xml.Name `xml:"LocationConstraint" json:"-"`
	Xmlns    string   `xml:"xmlns,attr" json:"-"`
	Location string   `xml:",chardata" json:"location"`
}
