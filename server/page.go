// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Movie Recommender</title>
</head>
<body>
<h1>Movie Recommender</h1>
<form method="get" action="/">
<label for="title">Choose a movie</label>
<select id="title" name="title">
{%- for t in titles %}
<option value="{{ t|e }}"{% if t == selected %} selected{% endif %}>{{ t|e }}</option>
{%- endfor %}
</select>
<input type="hidden" name="n" value="{{ n }}">
<button type="submit">Recommend</button>
</form>
{%- if error %}
<p class="error">{{ error|e }}</p>
{%- elif lines %}
<h2>Movies recommended based on your choice: <b>{{ selected|e }}</b></h2>
<ul>
{%- for line in lines %}
<li>{{ line|e }}</li>
{%- endfor %}
</ul>
{%- elif selected %}
<p>No other movies to recommend.</p>
{%- endif %}
</body>
</html>
`
