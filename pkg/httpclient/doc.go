// Package httpclient provides a typed Go client for consuming the upload
// REST API.
//
// Create a client with:
//
//	client, err := httpclient.New("http://localhost:5000/api")
//	if err != nil {
//	   panic(err)
//	}
//
// Then use the client to upload files:
//
//	file, err := httpclient.Open(os.DirFS("."), "invoice.pdf")
//	if err != nil {
//	   panic(err)
//	}
//	response, err := client.UploadMultiple(ctx, []types.File{file})
package httpclient
