package timing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const uploadFragment = "/Content/12/34/SaveAttachments"

type fakeBodies struct {
	mu     sync.Mutex
	bodies map[network.RequestID]string
	delay  map[network.RequestID]time.Duration
	panics bool
}

func (f *fakeBodies) ResponseBody(ctx context.Context, id network.RequestID) ([]byte, error) {
	if f.panics {
		panic("body source exploded")
	}
	f.mu.Lock()
	body, ok := f.bodies[id]
	delay := f.delay[id]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		return nil, fmt.Errorf("no resource with given identifier found")
	}
	return []byte(body), nil
}

func monotonic(seconds float64) *cdp.MonotonicTime {
	t := cdp.MonotonicTime(cdp.MonotonicTimeEpoch.Add(time.Duration(seconds * float64(time.Second))))
	return &t
}

func wallTime(t time.Time) *cdp.TimeSinceEpoch {
	w := cdp.TimeSinceEpoch(t)
	return &w
}

// upload replays the network events of one upload request
func upload(o *Observer, id network.RequestID, url string, started time.Time, sendStartMs, finishedAfterMs float64) {
	const baseline = 500.0

	o.HandleEvent(&network.EventRequestWillBeSent{
		RequestID: id,
		Request:   &network.Request{URL: url, Method: "POST"},
		WallTime:  wallTime(started),
	})
	o.HandleEvent(&network.EventResponseReceived{
		RequestID: id,
		Response: &network.Response{
			URL:    url,
			Status: 200,
			Timing: &network.ResourceTiming{RequestTime: baseline, SendStart: sendStartMs},
		},
	})
	o.HandleEvent(&network.EventLoadingFinished{
		RequestID: id,
		Timestamp: monotonic(baseline + finishedAfterMs/1000),
	})
}

func TestObserver_RecordsUpload(t *testing.T) {
	bodies := &fakeBodies{bodies: map[network.RequestID]string{"1": reportBody}}
	o := NewObserver(context.Background(), ObserverConfig{Fragment: uploadFragment, Instance: "https://instance.test"}, bodies, arbor.NewLogger())

	started := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	upload(o, "1", "https://instance.test"+uploadFragment, started, 1000, 3340)

	require.NoError(t, o.Wait(context.Background()))

	records := o.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "report.pdf", records[0].FileName)
	assert.Equal(t, "https://instance.test", records[0].Instance)
	assert.InDelta(t, 2.34, records[0].RequestTimeInSeconds, 1e-6)
	assert.True(t, started.Equal(records[0].Timestamp))
	assert.Equal(t, 0, o.Failures())
}

func TestObserver_IgnoresOtherRequests(t *testing.T) {
	bodies := &fakeBodies{bodies: map[network.RequestID]string{"1": reportBody}}
	o := NewObserver(context.Background(), ObserverConfig{Fragment: uploadFragment}, bodies, arbor.NewLogger())

	upload(o, "1", "https://instance.test/Content/12/34/Edit", time.Now(), 0, 10)
	upload(o, "2", "https://instance.test/Content/99/SaveAttachments", time.Now(), 0, 10)

	require.NoError(t, o.Wait(context.Background()))
	assert.Empty(t, o.Records())
	assert.Equal(t, 0, o.Failures())
}

func TestObserver_OrdersByCompletion(t *testing.T) {
	bodies := &fakeBodies{
		bodies: map[network.RequestID]string{
			"a": `{"data":[{"fileName":{"segments":[{"text":"a.txt"}]}}]}`,
			"b": `{"data":[{"fileName":{"segments":[{"text":"b.txt"}]}}]}`,
		},
		// The first body arrives last
		delay: map[network.RequestID]time.Duration{"a": 50 * time.Millisecond},
	}
	o := NewObserver(context.Background(), ObserverConfig{Fragment: uploadFragment}, bodies, arbor.NewLogger())

	upload(o, "a", "https://instance.test"+uploadFragment, time.Now(), 0, 10)
	upload(o, "b", "https://instance.test"+uploadFragment, time.Now(), 0, 20)

	require.NoError(t, o.Wait(context.Background()))

	records := o.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "a.txt", records[0].FileName)
	assert.Equal(t, "b.txt", records[1].FileName)
}

func TestObserver_ExtractionFailureIsCounted(t *testing.T) {
	bodies := &fakeBodies{bodies: map[network.RequestID]string{
		"bad":  `{"error":"nope"}`,
		"good": reportBody,
	}}
	o := NewObserver(context.Background(), ObserverConfig{Fragment: uploadFragment}, bodies, arbor.NewLogger())

	url := "https://instance.test" + uploadFragment
	upload(o, "bad", url, time.Now(), 0, 10)
	upload(o, "missing", url, time.Now(), 0, 10)
	upload(o, "good", url, time.Now(), 0, 10)

	require.NoError(t, o.Wait(context.Background()))
	assert.Len(t, o.Records(), 1)
	assert.Equal(t, 2, o.Failures())
}

func TestObserver_MissingTimingIsCounted(t *testing.T) {
	bodies := &fakeBodies{bodies: map[network.RequestID]string{"1": reportBody}}
	o := NewObserver(context.Background(), ObserverConfig{Fragment: uploadFragment}, bodies, arbor.NewLogger())

	url := "https://instance.test" + uploadFragment
	o.HandleEvent(&network.EventRequestWillBeSent{RequestID: "1", Request: &network.Request{URL: url}})
	o.HandleEvent(&network.EventLoadingFinished{RequestID: "1", Timestamp: monotonic(1)})

	require.NoError(t, o.Wait(context.Background()))
	assert.Empty(t, o.Records())
	assert.Equal(t, 1, o.Failures())
}

func TestObserver_FailedLoadIsDropped(t *testing.T) {
	bodies := &fakeBodies{bodies: map[network.RequestID]string{"1": reportBody}}
	o := NewObserver(context.Background(), ObserverConfig{Fragment: uploadFragment}, bodies, arbor.NewLogger())

	url := "https://instance.test" + uploadFragment
	o.HandleEvent(&network.EventRequestWillBeSent{RequestID: "1", Request: &network.Request{URL: url}})
	o.HandleEvent(&network.EventLoadingFailed{RequestID: "1", ErrorText: "net::ERR_CONNECTION_RESET"})
	o.HandleEvent(&network.EventLoadingFinished{RequestID: "1", Timestamp: monotonic(1)})

	require.NoError(t, o.Wait(context.Background()))
	assert.Empty(t, o.Records())
	assert.Equal(t, 0, o.Failures())
}

func TestObserver_PanicIsReturnedFromWait(t *testing.T) {
	bodies := &fakeBodies{panics: true}
	o := NewObserver(context.Background(), ObserverConfig{Fragment: uploadFragment}, bodies, arbor.NewLogger())

	upload(o, "1", "https://instance.test"+uploadFragment, time.Now(), 0, 10)

	err := o.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestObserver_WaitHonoursContext(t *testing.T) {
	bodies := &fakeBodies{
		bodies: map[network.RequestID]string{"1": reportBody},
		delay:  map[network.RequestID]time.Duration{"1": 500 * time.Millisecond},
	}
	o := NewObserver(context.Background(), ObserverConfig{Fragment: uploadFragment}, bodies, arbor.NewLogger())
	upload(o, "1", "https://instance.test"+uploadFragment, time.Now(), 0, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := o.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	require.NoError(t, o.Wait(context.Background()))
	assert.Len(t, o.Records(), 1)
}

func TestObserver_UploadAfterWaitIsCounted(t *testing.T) {
	bodies := &fakeBodies{bodies: map[network.RequestID]string{"1": reportBody, "2": reportBody}}
	o := NewObserver(context.Background(), ObserverConfig{Fragment: uploadFragment}, bodies, arbor.NewLogger())

	url := "https://instance.test" + uploadFragment
	upload(o, "1", url, time.Now(), 0, 10)
	require.NoError(t, o.Wait(context.Background()))

	upload(o, "2", url, time.Now(), 0, 10)
	require.NoError(t, o.Wait(context.Background()))

	assert.Len(t, o.Records(), 1)
	assert.Equal(t, 1, o.Failures())
}

func TestObserver_UploadsFinishingDuringWait(t *testing.T) {
	const uploads = 50
	bodies := &fakeBodies{bodies: map[network.RequestID]string{}}
	for i := 0; i < uploads; i++ {
		bodies.bodies[network.RequestID(fmt.Sprint(i))] = reportBody
	}
	o := NewObserver(context.Background(), ObserverConfig{Fragment: uploadFragment}, bodies, arbor.NewLogger())

	url := "https://instance.test" + uploadFragment
	events := make(chan struct{})
	go func() {
		defer close(events)
		for i := 0; i < uploads; i++ {
			upload(o, network.RequestID(fmt.Sprint(i)), url, time.Now(), 0, 10)
		}
	}()

	require.NoError(t, o.Wait(context.Background()))
	<-events
	require.NoError(t, o.Wait(context.Background()))

	assert.Equal(t, uploads, len(o.Records())+o.Failures(), "every finished upload is either recorded or counted")
}
