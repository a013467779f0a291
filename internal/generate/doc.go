// Package generate maps user-facing generation operations onto workflow
// templates. Each operation knows which template it drives, which engine
// role serves it, and which node fields carry the user's prompt and media
// inputs. The package prepares local inputs (image resizing, lipsync
// dimension selection) before handing the request to the job runner.
package generate
