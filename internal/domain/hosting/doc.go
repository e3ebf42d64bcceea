/*
Package hosting implements the permalink backend.

Projects are stored in the SQLite projects table under twelve-character
ids and are served as standalone pages at /{id}. The Service validates
input, counts views, renders pages and ZIP exports, and removes stale
projects on the daily retention sweep.

Validation rules:
  - at least one of html, css or js is non-empty
  - html, css and js together are at most 1 MiB
  - the project name is at most 100 characters
  - at most 20 tags, each at most 32 characters

Updates are partial; the merged project is validated as a whole.
*/
package hosting
