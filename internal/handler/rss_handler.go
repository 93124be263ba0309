package handler

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const rssContentType = "application/rss+xml; charset=utf-8"

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Language    string    `xml:"language"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	Description string `xml:"description"`
	Author      string `xml:"author,omitempty"`
	Category    string `xml:"category,omitempty"`
	PubDate     string `xml:"pubDate"`
}

// RSSHandler は最新投稿のRSS配信を行うHTTPハンドラー。
type RSSHandler struct {
	feeds   FeedServiceInterface
	baseURL string
}

// NewRSSHandler はRSSHandlerを生成する。baseURLはリンクの絶対URL化に使用する。
func NewRSSHandler(feeds FeedServiceInterface, baseURL string) *RSSHandler {
	return &RSSHandler{feeds: feeds, baseURL: strings.TrimRight(baseURL, "/")}
}

// Feed は全投稿フィードの1ページ目をRSS 2.0で返す。
// GET /rss/
func (h *RSSHandler) Feed(ctx context.Context, _ *Request) (*Response, error) {
	page, err := h.feeds.All(ctx, 1)
	if err != nil {
		return nil, err
	}

	doc := rssDocument{
		Version: "2.0",
		Channel: rssChannel{
			Title:       "Postline",
			Link:        h.baseURL + "/",
			Description: "Postlineの最新の投稿",
			Language:    "ja",
			Items:       make([]rssItem, 0, len(page.Posts)),
		},
	}
	for _, p := range page.Posts {
		link := h.baseURL + postDetailURL(p.ID)
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       p.String(),
			Link:        link,
			GUID:        link,
			Description: p.Text,
			Author:      p.AuthorUsername,
			Category:    p.GroupTitle,
			PubDate:     p.CreatedAt.UTC().Format(time.RFC1123Z),
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode rss: %w", err)
	}
	return &Response{
		Status:      http.StatusOK,
		ContentType: rssContentType,
		Body:        append([]byte(xml.Header), body...),
	}, nil
}
