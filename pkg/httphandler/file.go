package httphandler

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	// Packages
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
	manager "github.com/mutablelogic/go-uploader/pkg/manager"
	schema "github.com/mutablelogic/go-uploader/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: /file/{id...}
// GET downloads a stored file, HEAD returns its metadata, DELETE removes it.
func FileHandler(mgr *manager.Manager) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/file/{id...}", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				_ = fileGet(w, r, mgr)
			case http.MethodHead:
				_ = fileHead(w, r, mgr)
			case http.MethodDelete:
				_ = fileDelete(w, r, mgr)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "Download a stored file by public id",
			},
			Head: &openapi.Operation{
				Description: "Get stored file metadata without body",
			},
			Delete: &openapi.Operation{
				Description: "Delete a stored file by public id",
			},
		})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func fileHead(w http.ResponseWriter, r *http.Request, mgr *manager.Manager) error {
	asset, err := mgr.GetAsset(r.Context(), r.PathValue("id"))
	if err != nil {
		return httpresponse.Error(w, err)
	}

	writeAssetHeaders(w, asset, resolveContentType(asset.ContentType, "", filepath.Ext(asset.Name)))
	if checkPreconditions(w, r, asset) {
		return nil
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func fileGet(w http.ResponseWriter, r *http.Request, mgr *manager.Manager) error {
	reader, asset, err := mgr.ReadAsset(r.Context(), r.PathValue("id"))
	if err != nil {
		return httpresponse.Error(w, err)
	}
	defer reader.Close()

	buffer := make([]byte, 512)
	n, err := io.ReadFull(reader, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return httpresponse.Error(w, err)
	}

	sniffed := http.DetectContentType(buffer[:n])
	writeAssetHeaders(w, asset, resolveContentType(asset.ContentType, sniffed, filepath.Ext(asset.Name)))
	if checkPreconditions(w, r, asset) {
		return nil
	}
	w.WriteHeader(http.StatusOK)

	if n > 0 {
		if _, err := w.Write(buffer[:n]); err != nil {
			return err
		}
	}
	if _, err := io.Copy(w, reader); err != nil {
		return err
	}
	return nil
}

func fileDelete(w http.ResponseWriter, r *http.Request, mgr *manager.Manager) error {
	asset, err := mgr.DeleteAsset(r.Context(), r.PathValue("id"))
	if err != nil {
		return httpresponse.Error(w, err)
	}
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), asset)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS - HELPER FUNCTIONS

// resolveContentType returns the best content-type for an asset, preferring
// stored metadata over sniffed body content over file-extension over binary fallback.
func resolveContentType(stored, sniffed, ext string) string {
	if stored != "" && stored != types.ContentTypeBinary {
		return stored
	}
	if sniffed != "" && sniffed != types.ContentTypeBinary {
		return sniffed
	}
	if extType := mime.TypeByExtension(ext); extType != "" {
		return extType
	}
	if stored != "" {
		return stored
	}
	return types.ContentTypeBinary
}

// writeAssetHeaders sets Content-Type, Content-Disposition, Content-Length,
// ETag and Last-Modified response headers from the asset metadata.
func writeAssetHeaders(w http.ResponseWriter, asset *schema.Asset, contentType string) {
	w.Header().Set(types.ContentTypeHeader, contentType)
	if asset.Name != "" {
		if cd := mime.FormatMediaType("inline", map[string]string{"filename": asset.Name}); cd != "" {
			w.Header().Set(types.ContentDispositonHeader, cd)
		}
	}
	if asset.ETag != "" {
		w.Header().Set("ETag", asset.ETag)
	}
	if asset.Size >= 0 {
		w.Header().Set(types.ContentLengthHeader, strconv.FormatInt(asset.Size, 10))
	}
	if !asset.ModTime.IsZero() {
		w.Header().Set(types.ContentModifiedHeader, asset.ModTime.Format(http.TimeFormat))
	}
}

// checkPreconditions evaluates RFC 7232 conditional request headers in the
// prescribed order. It writes 304 or 412 and returns true if the caller
// should stop processing.
func checkPreconditions(w http.ResponseWriter, r *http.Request, asset *schema.Asset) bool {
	etag := asset.ETag
	modtime := asset.ModTime

	// If-Match, else If-Unmodified-Since
	if im := r.Header.Get("If-Match"); im != "" {
		if !matchETags(im, etag, true) {
			w.WriteHeader(http.StatusPreconditionFailed)
			return true
		}
	} else if ius := r.Header.Get("If-Unmodified-Since"); ius != "" {
		if t, err := http.ParseTime(ius); err == nil && modtime.After(t) {
			w.WriteHeader(http.StatusPreconditionFailed)
			return true
		}
	}

	// If-None-Match, else If-Modified-Since
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		if matchETags(inm, etag, false) {
			w.WriteHeader(http.StatusNotModified)
			return true
		}
	} else if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil && !modtime.After(t) {
			w.WriteHeader(http.StatusNotModified)
			return true
		}
	}

	return false
}

// matchETags reports whether the header value ("*" or a comma-separated list
// of quoted ETags) matches etag. Weak tags never satisfy strong comparison.
func matchETags(header, etag string, strong bool) bool {
	if strings.TrimSpace(header) == "*" {
		return etag != ""
	}
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if strong && (strings.HasPrefix(part, "W/") || strings.HasPrefix(etag, "W/")) {
			continue
		}
		if strings.Trim(strings.TrimPrefix(part, "W/"), `"`) ==
			strings.Trim(strings.TrimPrefix(etag, "W/"), `"`) {
			return true
		}
	}
	return false
}
