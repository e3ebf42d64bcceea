package compositor

import "html"

// NotFoundPage renders the page served for an unknown permalink id.
func NotFoundPage(id string) string {
	return `<!DOCTYPE html>
<html>
<head>
    <title>Project not found</title>
    <meta charset="UTF-8">
    <style>
        body{font-family:Arial,sans-serif;text-align:center;padding:50px;background:#f5f5f5;}
        .error{background:white;padding:30px;border-radius:10px;box-shadow:0 2px 10px rgba(0,0,0,0.1);max-width:400px;margin:auto;}
    </style>
</head>
<body>
    <div class="error">
        <h1>404</h1>
        <p>Project not found</p>
        <p>ID: ` + html.EscapeString(id) + `</p>
    </div>
</body>
</html>
`
}
