package sandbox

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// dom exposes the parsed document to page code. Proxies are cached per node
// so that document.body === document.body holds.
type dom struct {
	vm      *goja.Runtime
	doc     *goquery.Document
	proxies map[*html.Node]*goja.Object
	nodes   map[*goja.Object]*html.Node
	on      func(target, typ string, fn goja.Value)
}

func newDOM(vm *goja.Runtime, doc *goquery.Document, on func(target, typ string, fn goja.Value)) *dom {
	return &dom{
		vm:      vm,
		doc:     doc,
		proxies: make(map[*html.Node]*goja.Object),
		nodes:   make(map[*goja.Object]*html.Node),
		on:      on,
	}
}

// document builds the global document object.
func (d *dom) document() *goja.Object {
	obj := d.vm.NewObject()
	root := d.doc.Selection

	d.getter(obj, "body", func() goja.Value { return d.first(root.Find("body")) })
	d.getter(obj, "head", func() goja.Value { return d.first(root.Find("head")) })
	d.getter(obj, "documentElement", func() goja.Value { return d.first(root.Find("html")) })
	d.accessor(obj, "title",
		func() goja.Value { return d.vm.ToValue(strings.TrimSpace(root.Find("title").First().Text())) },
		func(v goja.Value) {
			title := root.Find("title")
			if title.Length() == 0 {
				root.Find("head").AppendHtml("<title></title>")
				title = root.Find("title")
			}
			title.First().SetText(v.String())
		})
	d.getter(obj, "readyState", func() goja.Value { return d.vm.ToValue("loading") })

	d.bindQueries(obj, root)
	_ = obj.Set("getElementById", func(id string) goja.Value {
		match := root.FindMatcher(attrMatcher("id", id)).First()
		return d.first(match)
	})
	_ = obj.Set("createElement", func(tag string) goja.Value {
		tag = strings.ToLower(tag)
		n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
		return d.proxy(n)
	})
	_ = obj.Set("createTextNode", func(text string) goja.Value {
		return d.proxy(&html.Node{Type: html.TextNode, Data: text})
	})
	_ = obj.Set("addEventListener", func(typ string, fn goja.Value) { d.on("document", typ, fn) })
	_ = obj.Set("removeEventListener", func(string, goja.Value) {})
	return obj
}

func (d *dom) bindQueries(obj *goja.Object, sel *goquery.Selection) {
	_ = obj.Set("querySelector", func(selector string) goja.Value {
		return d.first(sel.FindMatcher(d.compile(selector)))
	})
	_ = obj.Set("querySelectorAll", func(selector string) goja.Value {
		return d.all(sel.FindMatcher(d.compile(selector)))
	})
	_ = obj.Set("getElementsByTagName", func(tag string) goja.Value {
		return d.all(sel.FindMatcher(d.compile(tag)))
	})
	_ = obj.Set("getElementsByClassName", func(class string) goja.Value {
		return d.all(sel.FindMatcher(classMatcher(class)))
	})
}

// compile turns a selector into a matcher, throwing a page-level
// exception for selectors the browser would reject.
func (d *dom) compile(selector string) goquery.Matcher {
	m, err := cascadia.Compile(selector)
	if err != nil {
		panic(d.vm.NewTypeError("'%s' is not a valid selector", selector))
	}
	return m
}

func (d *dom) first(sel *goquery.Selection) goja.Value {
	if sel.Length() == 0 {
		return goja.Null()
	}
	return d.proxy(sel.Get(0))
}

func (d *dom) all(sel *goquery.Selection) goja.Value {
	out := make([]any, 0, sel.Length())
	for _, n := range sel.Nodes {
		out = append(out, d.proxy(n))
	}
	return d.vm.NewArray(out...)
}

// proxy returns the element object for n.
func (d *dom) proxy(n *html.Node) *goja.Object {
	if obj, ok := d.proxies[n]; ok {
		return obj
	}
	obj := d.vm.NewObject()
	d.proxies[n] = obj
	d.nodes[obj] = n
	sel := goquery.NewDocumentFromNode(n).Selection

	d.getter(obj, "tagName", func() goja.Value {
		if n.Type == html.TextNode {
			return d.vm.ToValue("#text")
		}
		return d.vm.ToValue(strings.ToUpper(n.Data))
	})
	d.attrAccessor(obj, sel, "id", "id")
	d.attrAccessor(obj, sel, "className", "class")
	d.attrAccessor(obj, sel, "value", "value")
	d.accessor(obj, "innerHTML",
		func() goja.Value {
			s, _ := sel.Html()
			return d.vm.ToValue(s)
		},
		func(v goja.Value) { sel.SetHtml(v.String()) })
	d.getter(obj, "outerHTML", func() goja.Value {
		s, _ := goquery.OuterHtml(sel)
		return d.vm.ToValue(s)
	})
	text := func() goja.Value {
		if n.Type == html.TextNode {
			return d.vm.ToValue(n.Data)
		}
		return d.vm.ToValue(sel.Text())
	}
	setText := func(v goja.Value) {
		if n.Type == html.TextNode {
			n.Data = v.String()
			return
		}
		sel.SetText(v.String())
	}
	d.accessor(obj, "textContent", text, setText)
	d.accessor(obj, "innerText", text, setText)
	d.getter(obj, "parentNode", func() goja.Value {
		if n.Parent == nil || n.Parent.Type == html.DocumentNode {
			return goja.Null()
		}
		return d.proxy(n.Parent)
	})
	d.getter(obj, "children", func() goja.Value { return d.all(sel.Children()) })

	_ = obj.Set("getAttribute", func(name string) goja.Value {
		if v, ok := sel.Attr(name); ok {
			return d.vm.ToValue(v)
		}
		return goja.Null()
	})
	_ = obj.Set("setAttribute", func(name string, v goja.Value) { sel.SetAttr(name, v.String()) })
	_ = obj.Set("removeAttribute", func(name string) { sel.RemoveAttr(name) })
	_ = obj.Set("hasAttribute", func(name string) bool {
		_, ok := sel.Attr(name)
		return ok
	})
	_ = obj.Set("appendChild", func(child *goja.Object) goja.Value {
		cn, ok := d.nodes[child]
		if !ok {
			panic(d.vm.NewTypeError("parameter 1 is not of type 'Node'"))
		}
		if cn.Parent != nil {
			cn.Parent.RemoveChild(cn)
		}
		n.AppendChild(cn)
		return child
	})
	_ = obj.Set("remove", func() {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	})
	_ = obj.Set("addEventListener", func(string, goja.Value) {})
	_ = obj.Set("removeEventListener", func(string, goja.Value) {})

	classList := d.vm.NewObject()
	_ = classList.Set("add", func(call goja.FunctionCall) goja.Value {
		for _, a := range call.Arguments {
			sel.AddClass(a.String())
		}
		return goja.Undefined()
	})
	_ = classList.Set("remove", func(call goja.FunctionCall) goja.Value {
		for _, a := range call.Arguments {
			sel.RemoveClass(a.String())
		}
		return goja.Undefined()
	})
	_ = classList.Set("contains", func(class string) bool { return sel.HasClass(class) })
	_ = classList.Set("toggle", func(class string) bool {
		sel.ToggleClass(class)
		return sel.HasClass(class)
	})
	_ = obj.Set("classList", classList)
	_ = obj.Set("style", d.vm.NewObject())

	if n.Type == html.ElementNode {
		d.bindQueries(obj, sel)
	}
	return obj
}

func (d *dom) attrAccessor(obj *goja.Object, sel *goquery.Selection, prop, attr string) {
	d.accessor(obj, prop,
		func() goja.Value { return d.vm.ToValue(sel.AttrOr(attr, "")) },
		func(v goja.Value) { sel.SetAttr(attr, v.String()) })
}

func (d *dom) getter(obj *goja.Object, name string, get func() goja.Value) {
	d.accessor(obj, name, get, nil)
}

func (d *dom) accessor(obj *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	getter := d.vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
	var setter goja.Value
	if set != nil {
		setter = d.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	_ = obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

// body returns the serialised body after the run.
func (d *dom) body() string {
	s, _ := d.doc.Find("body").Html()
	return s
}

type funcMatcher func(*html.Node) bool

func (f funcMatcher) Match(n *html.Node) bool { return f(n) }

func (f funcMatcher) MatchAll(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if f(c) {
			out = append(out, c)
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return out
}

func (f funcMatcher) Filter(nodes []*html.Node) []*html.Node {
	var out []*html.Node
	for _, n := range nodes {
		if f(n) {
			out = append(out, n)
		}
	}
	return out
}

func attrMatcher(name, value string) goquery.Matcher {
	return funcMatcher(func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, a := range n.Attr {
			if a.Key == name && a.Val == value {
				return true
			}
		}
		return false
	})
}

func classMatcher(class string) goquery.Matcher {
	want := strings.Fields(class)
	return funcMatcher(func(n *html.Node) bool {
		if n.Type != html.ElementNode || len(want) == 0 {
			return false
		}
		for _, a := range n.Attr {
			if a.Key != "class" {
				continue
			}
			have := strings.Fields(a.Val)
			for _, w := range want {
				found := false
				for _, h := range have {
					if h == w {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
			return true
		}
		return false
	})
}
