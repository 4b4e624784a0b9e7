package schema

////////////////////////////////////////////////////////////////////////////////
// TYPES

const (
	SchemaName = "uploader"

	// Multipart form field names
	FieldFile  = "file"
	FieldFiles = "files"

	// Metadata keys stored alongside each asset. S3 normalizes metadata keys
	// to lowercase, so these are lowercase too.
	AttrFilename     = "filename"
	AttrFolder       = "folder"
	AttrResourceType = "resource-type"
)

// Human-readable messages returned in response bodies
const (
	MessageNoFile        = "No file uploaded"
	MessageNoFiles       = "No files uploaded"
	MessageImageUploaded = "Image uploaded successfully"
	MessageFileUploaded  = "File uploaded successfully"
	MessageUploadFailed  = "Error uploading files"
)
