// Package ingest provisions the document index and seeds it with the
// sample corpus. Each document carries its own user and group
// permission lists; the query path never sees documents outside the
// caller's lists.
package ingest

import "github.com/securedocs/obo-search-relay/internal/infra/searchindex"

// SampleDocuments returns the seed corpus. Permission coverage is
// deliberately uneven so every access pattern is represented: shared
// documents, single-owner documents, and documents spanning multiple
// groups.
func SampleDocuments() []searchindex.Document {
	return []searchindex.Document{
		{
			"id":       "doc1",
			"oid":      []string{"user1@example.com", "user2@example.com"},
			"group":    []string{"group1", "group2"},
			"name":     "Security Best Practices",
			"content":  "This document contains security best practices for enterprise applications including authentication, authorization, and data protection strategies.",
			"category": "Security",
		},
		{
			"id":       "doc2",
			"oid":      []string{"user1@example.com"},
			"group":    []string{"group1"},
			"name":     "Azure AI Search Overview",
			"content":  "Azure AI Search is a cloud search service that provides infrastructure, APIs, and tools for building search experiences over private, heterogeneous content in web, mobile, and enterprise applications.",
			"category": "Documentation",
		},
		{
			"id":       "doc3",
			"oid":      []string{"user2@example.com", "user3@example.com"},
			"group":    []string{"group2", "group3"},
			"name":     "MCP Protocol Guide",
			"content":  "The Model Context Protocol (MCP) is an open protocol that standardizes how applications provide context to LLMs. This guide covers authentication, transport, and tool definitions.",
			"category": "Documentation",
		},
		{
			"id":       "doc4",
			"oid":      []string{"user1@example.com", "user2@example.com", "user3@example.com"},
			"group":    []string{"group1", "group2", "group3"},
			"name":     "Enterprise Authentication Patterns",
			"content":  "This document describes various enterprise authentication patterns including OAuth 2.0, OpenID Connect, SAML, and On-Behalf-Of flow for secure access to resources.",
			"category": "Security",
		},
		{
			"id":       "doc5",
			"oid":      []string{"user3@example.com"},
			"group":    []string{"group3"},
			"name":     "Python Development Guide",
			"content":  "A comprehensive guide to Python development covering best practices, code organization, testing strategies, and common patterns for building maintainable applications.",
			"category": "Development",
		},
		{
			"id":       "doc6",
			"oid":      []string{"user1@example.com", "user4@example.com"},
			"group":    []string{"group1", "group4"},
			"name":     "Secure API Design",
			"content":  "Best practices for designing secure APIs including rate limiting, input validation, output encoding, authentication mechanisms, and secure communication protocols.",
			"category": "Security",
		},
		{
			"id":       "doc7",
			"oid":      []string{"user2@example.com", "user3@example.com", "user4@example.com"},
			"group":    []string{"group2", "group3", "group4"},
			"name":     "Search Optimization Techniques",
			"content":  "Learn about various search optimization techniques including indexing strategies, query optimization, relevance tuning, and performance monitoring.",
			"category": "Documentation",
		},
		{
			"id":       "doc8",
			"oid":      []string{"user1@example.com"},
			"group":    []string{"group1"},
			"name":     "Secret Management in Azure",
			"content":  "Guide to managing secrets in Azure using Azure Key Vault, managed identities, and secure coding practices to prevent credential leakage.",
			"category": "Security",
		},
	}
}

// WithExtraAccess returns a copy of docs with the given user and group
// identifiers appended to every document's permission lists. Used to
// grant the operator running ingestion access to the whole corpus.
func WithExtraAccess(docs []searchindex.Document, userIDs, groupIDs []string) []searchindex.Document {
	out := make([]searchindex.Document, 0, len(docs))
	for _, doc := range docs {
		copied := make(searchindex.Document, len(doc))
		for k, v := range doc {
			copied[k] = v
		}
		copied["oid"] = appendMissing(stringList(doc["oid"]), userIDs)
		copied["group"] = appendMissing(stringList(doc["group"]), groupIDs)
		out = append(out, copied)
	}
	return out
}

func stringList(v any) []string {
	list, _ := v.([]string)
	return append([]string(nil), list...)
}

func appendMissing(list, extras []string) []string {
	for _, extra := range extras {
		if extra == "" {
			continue
		}
		found := false
		for _, existing := range list {
			if existing == extra {
				found = true
				break
			}
		}
		if !found {
			list = append(list, extra)
		}
	}
	return list
}
