package registry

import "testing"

func containsStr(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}

func TestRegisterPublisherReturnsSubscribersAndPublishers(t *testing.T) {
	r := NewTopicRegistry()
	r.RegisterSubscriber("/sub1", "/chatter", "std_msgs/String", "http://sub1:1")

	subs, pubs := r.RegisterPublisher("/pub1", "/chatter", "std_msgs/String", "http://pub1:2")
	if len(subs) != 1 || subs[0] != "http://sub1:1" {
		t.Errorf("expected subscriber list [http://sub1:1], got %v", subs)
	}
	if len(pubs) != 1 || pubs[0] != "http://pub1:2" {
		t.Errorf("expected publisher list [http://pub1:2], got %v", pubs)
	}
}

func TestRegisterPublisherReplacesURIForSameCaller(t *testing.T) {
	r := NewTopicRegistry()
	r.RegisterPublisher("/pub1", "/chatter", "std_msgs/String", "http://old:1")
	_, pubs := r.RegisterPublisher("/pub1", "/chatter", "std_msgs/String", "http://new:2")
	if len(pubs) != 1 || pubs[0] != "http://new:2" {
		t.Errorf("expected single, replaced URI, got %v", pubs)
	}
}

func TestTopicTypeIsStickyToFirstNonEmpty(t *testing.T) {
	r := NewTopicRegistry()
	r.RegisterSubscriber("/sub1", "/chatter", "*", "http://sub1:1")
	r.RegisterPublisher("/pub1", "/chatter", "std_msgs/String", "http://pub1:2")
	r.RegisterPublisher("/pub2", "/chatter", "std_msgs/OtherType", "http://pub2:3")

	types := r.GetTopicTypes()
	if len(types) != 1 || types[0][1] != "std_msgs/String" {
		t.Errorf("expected sticky type std_msgs/String, got %v", types)
	}
}

func TestUnregisterPublisherTriggersNotificationOnlyWhenRemoved(t *testing.T) {
	r := NewTopicRegistry()
	r.RegisterSubscriber("/sub1", "/chatter", "std_msgs/String", "http://sub1:1")
	r.RegisterPublisher("/pub1", "/chatter", "std_msgs/String", "http://pub1:2")

	removed, subs, pubs := r.UnregisterPublisher("/pub1", "/chatter", "http://pub1:2")
	if !removed {
		t.Fatal("expected removal to succeed")
	}
	if len(subs) != 1 || subs[0] != "http://sub1:1" {
		t.Errorf("expected remaining subscriber http://sub1:1, got %v", subs)
	}
	if len(pubs) != 0 {
		t.Errorf("expected empty publisher list after removal, got %v", pubs)
	}

	removed2, subs2, pubs2 := r.UnregisterPublisher("/pub1", "/chatter", "http://pub1:2")
	if removed2 {
		t.Error("expected second unregister of the same publisher to be a no-op")
	}
	if subs2 != nil || pubs2 != nil {
		t.Error("expected no notification data on a no-op unregister")
	}
}

func TestEmptyTopicIsRemovedButTypeSticks(t *testing.T) {
	r := NewTopicRegistry()
	r.RegisterPublisher("/pub1", "/chatter", "std_msgs/String", "http://pub1:2")
	r.UnregisterPublisher("/pub1", "/chatter", "http://pub1:2")

	published := r.GetPublishedTopics("")
	if len(published) != 0 {
		t.Errorf("expected no published topics once the last publisher is gone, got %v", published)
	}
	types := r.GetTopicTypes()
	if len(types) != 1 || types[0][0] != "/chatter" {
		t.Errorf("expected the sticky type entry to remain, got %v", types)
	}
}

func TestGetPublishedTopicsFiltersBySubgraph(t *testing.T) {
	r := NewTopicRegistry()
	r.RegisterPublisher("/pub1", "/a/one", "t", "http://pub1:2")
	r.RegisterPublisher("/pub2", "/b/two", "t", "http://pub2:3")

	out := r.GetPublishedTopics("/a")
	if len(out) != 1 || out[0][0] != "/a/one" {
		t.Errorf("expected only /a/one, got %v", out)
	}
}

func TestUnregisterSubscriberRemovesRegistration(t *testing.T) {
	r := NewTopicRegistry()
	r.RegisterSubscriber("/sub1", "/chatter", "std_msgs/String", "http://sub1:1")
	removed := r.UnregisterSubscriber("/sub1", "/chatter", "http://sub1:1")
	if !removed {
		t.Error("expected removal to succeed")
	}
}

func TestSystemStatePublishersAndSubscribers(t *testing.T) {
	r := NewTopicRegistry()
	r.RegisterPublisher("/pub1", "/chatter", "t", "http://pub1:2")
	r.RegisterSubscriber("/sub1", "/chatter", "t", "http://sub1:1")

	pubs := r.SystemStatePublishers()
	if len(pubs) != 1 || pubs[0].Name != "/chatter" || !containsStr(pubs[0].CallerIDs, "/pub1") {
		t.Errorf("unexpected publishers state: %v", pubs)
	}

	subs := r.SystemStateSubscribers()
	if len(subs) != 1 || subs[0].Name != "/chatter" || !containsStr(subs[0].CallerIDs, "/sub1") {
		t.Errorf("unexpected subscribers state: %v", subs)
	}
}

func TestLookupNode(t *testing.T) {
	r := NewTopicRegistry()
	r.RegisterPublisher("/pub1", "/chatter", "t", "http://pub1:2")
	uri, ok := r.LookupNode("/pub1")
	if !ok || uri != "http://pub1:2" {
		t.Errorf("expected to find /pub1 at http://pub1:2, got %q, %v", uri, ok)
	}
	if _, ok := r.LookupNode("/nobody"); ok {
		t.Error("did not expect to find /nobody")
	}
}
