// Package fetcher retrieves release artifacts over HTTP into uniquely named
// scratch workspaces, with bounded retries and exponential backoff. The
// workspace lives only as long as the caller needs the artifact; its cleanup
// function removes it whether or not extraction succeeded.
package fetcher
