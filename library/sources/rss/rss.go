/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

/*
Package rss implements library.RSSStore and library.Source for RSS
feed subscriptions: feed items become media rows, and subscriptions
are snapshotted and restored around a full rescan so they survive a
destructive wipe. Feeds are parsed with the standard library's
encoding/xml.
*/
package rss

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shoutstream/shoutstream/library"
)

/*
rssFeed is the minimal subset of an RSS 2.0 document this package
reads.
*/
type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title string `xml:"title"`
	Link  string `xml:"link"`
	GUID  string `xml:"guid"`
}

/*
Store manages the set of subscribed feeds and implements
library.RSSStore. It also implements library.Source so its scan
methods pull new items from every subscribed feed.
*/
type Store struct {
	Logger *slog.Logger

	mu     sync.Mutex
	feeds  map[string]library.RSSFeed // keyed by URL
	client *http.Client
}

/*
New builds an empty RSS store.
*/
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		Logger: logger,
		feeds:  make(map[string]library.RSSFeed),
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *Store) Name() string { return "rss" }

func (s *Store) Init() error { return nil }
func (s *Store) Deinit()     {}

func (s *Store) InitScan(c *library.Coordinator) error   { return s.scanAll(c) }
func (s *Store) Rescan(c *library.Coordinator) error     { return s.scanAll(c) }
func (s *Store) MetaRescan(c *library.Coordinator) error { return nil } // metadata-only: feed items don't change
func (s *Store) FullRescan(c *library.Coordinator) error { return s.scanAll(c) }

/*
RSSAdd subscribes to a feed.
*/
func (s *Store) RSSAdd(name, url string, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if url == "" {
		return fmt.Errorf("rss: empty feed URL")
	}
	s.feeds[url] = library.RSSFeed{Name: name, URL: url, Limit: limit}
	return nil
}

/*
RSSRemove unsubscribes a feed.
*/
func (s *Store) RSSRemove(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.feeds, url)
	return nil
}

/*
RSSSnapshot copies every subscribed feed, taken before a full rescan
wipes the database.
*/
func (s *Store) RSSSnapshot() (library.RSSSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := make(library.RSSSnapshot, 0, len(s.feeds))
	for _, f := range s.feeds {
		snap = append(snap, f)
	}
	return snap, nil
}

/*
RSSRestore replaces the subscribed feed set with snapshot.
*/
func (s *Store) RSSRestore(snapshot library.RSSSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.feeds = make(map[string]library.RSSFeed, len(snapshot))
	for _, f := range snapshot {
		s.feeds[f.URL] = f
	}
	return nil
}

func (s *Store) scanAll(c *library.Coordinator) error {
	s.mu.Lock()
	feeds := make([]library.RSSFeed, 0, len(s.feeds))
	for _, f := range s.feeds {
		feeds = append(feeds, f)
	}
	s.mu.Unlock()

	var firstErr error
	for _, f := range feeds {
		if err := s.scanOne(c, f); err != nil {
			s.Logger.Warn("rss: feed scan failed", "url", f.URL, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Store) scanOne(c *library.Coordinator, feed library.RSSFeed) error {
	resp, err := s.client.Get(feed.URL)
	if err != nil {
		return fmt.Errorf("rss: fetch %s: %w", feed.URL, err)
	}
	defer resp.Body.Close()

	var doc rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("rss: parse %s: %w", feed.URL, err)
	}

	items := doc.Channel.Items
	if feed.Limit > 0 && len(items) > feed.Limit {
		items = items[:feed.Limit]
	}

	for _, item := range items {
		if _, err := c.MediaSave(library.MediaItem{Path: item.Link, Title: item.Title, Artist: feed.Name}); err != nil {
			s.Logger.Warn("rss: media save failed", "guid", item.GUID, "error", err)
		}
	}

	return nil
}
