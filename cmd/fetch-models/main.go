package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// fetch-models downloads the model files linked from an HTTP index page
// into the local graph folder, so shared model collections can be
// pulled with one command.

func main() {
	var (
		indexURL = flag.String("index", "", "URL of an index page linking model files (required)")
		outDir   = flag.String("out", "graphs", "Directory to store downloaded model files")
	)
	flag.Parse()

	if *indexURL == "" {
		log.Fatal("--index required")
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatal("create output directory:", err)
	}

	links, err := modelLinks(*indexURL)
	if err != nil {
		log.Fatal("read index:", err)
	}
	if len(links) == 0 {
		log.Fatal("no model files linked from ", *indexURL)
	}

	downloaded := 0
	for _, link := range links {
		name := path.Base(link)
		if err := download(link, filepath.Join(*outDir, name)); err != nil {
			log.Printf("skip %s: %v", name, err)
			continue
		}
		downloaded++
		log.Printf("fetched %s", name)
	}

	log.Printf("downloaded %d/%d model files to %s", downloaded, len(links), *outDir)
}

// modelLinks extracts absolute links to .json/.yml/.yaml files from the
// index page.
func modelLinks(indexURL string) ([]string, error) {
	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, err
	}

	resp, err := http.Get(indexURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	var links []string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				ref, err := url.Parse(attr.Val)
				if err != nil {
					continue
				}
				resolved := base.ResolveReference(ref)
				switch strings.ToLower(path.Ext(resolved.Path)) {
				case ".json", ".yml", ".yaml":
					links = append(links, resolved.String())
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)

	return links, nil
}

func download(link, dest string) error {
	resp, err := http.Get(link)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}
