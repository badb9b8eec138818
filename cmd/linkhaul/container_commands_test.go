package main

import (
	"testing"

	"linkhaul/internal/api"
)

func TestContainerManualLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env, "container", "manual", "Show S01", "https://rapidgator.net/file/a", "https://rapidgator.net/file/b")
	requireContains(t, out, `Container #1 "Show S01" is active (0/2)`)

	out = mustRunCLI(t, env, "container", "list")
	requireContains(t, out, "Show S01")
	requireContains(t, out, "active")

	env.aria.completeAll()
	out = mustRunCLI(t, env, "container", "reconcile", "1")
	requireContains(t, out, "Container #1 is completed (2/2)")

	resp := decodeOutput[api.ContainerResponse](t, mustRunCLI(t, env, "container", "show", "1", "--json"))
	if resp.Container.Status != "completed" || len(resp.Container.Downloads) != 2 {
		t.Fatalf("unexpected container %+v", resp.Container)
	}
	for _, d := range resp.Container.Downloads {
		if d.Status != "completed" || d.ContainerID == nil || *d.ContainerID != 1 {
			t.Fatalf("unexpected member %+v", d)
		}
	}

	out = mustRunCLI(t, env, "container", "show", "1")
	requireContains(t, out, "Folder:    Show S01")
	requireContains(t, out, "Links:     2/2")

	members := decodeOutput[api.DownloadListResponse](t, mustRunCLI(t, env, "download", "list", "--container", "1", "--json"))
	if len(members.Downloads) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members.Downloads))
	}

	out = mustRunCLI(t, env, "container", "rm", "1")
	requireContains(t, out, "Container #1 removed")
	requireContains(t, mustRunCLI(t, env, "download", "list"), "No downloads")
	requireContains(t, mustRunCLI(t, env, "container", "list"), "No containers")
}

func TestContainerListStatusFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	mustRunCLI(t, env, "container", "manual", "One", "https://rapidgator.net/file/a")

	list := decodeOutput[api.ContainerListResponse](t, mustRunCLI(t, env, "container", "list", "--status", "failed", "--json"))
	if len(list.Containers) != 0 {
		t.Fatalf("expected no failed containers, got %+v", list.Containers)
	}
	list = decodeOutput[api.ContainerListResponse](t, mustRunCLI(t, env, "container", "list", "--status", "active,pending", "--json"))
	if len(list.Containers) != 1 || list.Containers[0].Name != "One" {
		t.Fatalf("unexpected containers %+v", list.Containers)
	}
}

func TestContainerManualRequiresLinks(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "container", "manual", "Lonely"); err == nil {
		t.Fatalf("expected manual container without links to be rejected")
	}
	if _, _, err := runCLI(t, env, "container", "show", "42"); err == nil {
		t.Fatalf("expected missing container to error")
	}
}
