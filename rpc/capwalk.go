package rpc

import (
	"fmt"

	"github.com/kasvtv/capnp-rpc-engine/capnp"
	rpccapnp "github.com/kasvtv/capnp-rpc-engine/std/capnp/rpc"
)

// populateMessageCapTable is the inbound cap walker (spec.md §4.4): it
// resolves every descriptor in payload's cap-table into a
// capnp.Client and appends it to the payload's own message's
// CapTable, in order, so that capability pointers embedded in the
// content resolve correctly against msg.CapTable.At(i).
func (c *Conn) populateMessageCapTable(payload rpccapnp.Payload) error {
	msg := payload.Segment().Message()
	ctab, err := payload.CapTable()
	if err != nil {
		return err
	}
	for i, n := 0, ctab.Len(); i < n; i++ {
		desc := ctab.At(i)
		switch desc.Which() {
		case rpccapnp.CapDescriptor_Which_none:
			msg.AddCap(nil)
		case rpccapnp.CapDescriptor_Which_senderHosted:
			client, err := c.addImport(importID(desc.SenderHosted()))
			if err != nil {
				return err
			}
			msg.AddCap(client)
		case rpccapnp.CapDescriptor_Which_senderPromise:
			// Treated identically to sender_hosted: this forgoes being
			// able to detect resolution locally, but keeps messages
			// flowing, matching the teacher's own documented tradeoff.
			client, err := c.addImport(importID(desc.SenderPromise()))
			if err != nil {
				return err
			}
			msg.AddCap(client)
		case rpccapnp.CapDescriptor_Which_receiverHosted:
			id := exportID(desc.ReceiverHosted())
			e := c.findExport(id)
			if e == nil {
				return fmt.Errorf("rpc: %w: export id %d", ErrUnknownExport, id)
			}
			msg.AddCap(e.client)
		case rpccapnp.CapDescriptor_Which_receiverAnswer:
			recvAns, err := desc.ReceiverAnswer()
			if err != nil {
				return ErrMissingPromisedAnswer
			}
			id := answerID(recvAns.QuestionId())
			a := c.answers[id]
			if a == nil {
				return ErrUnknownReceiverAnswerCap
			}
			recvTransform, err := recvAns.Transform()
			if err != nil {
				return err
			}
			msg.AddCap(a.pipelineClient(promisedAnswerOpsToTransform(recvTransform)))
		case rpccapnp.CapDescriptor_Which_thirdPartyHosted:
			// Third-party vines are not implemented by this transport;
			// treat as an import on the vine id so messages still flow.
			tp, err := desc.ThirdPartyHosted()
			if err != nil {
				return ErrMissingThirdPartyCapDescriptor
			}
			client, err := c.addImport(importID(tp.VineId()))
			if err != nil {
				return err
			}
			msg.AddCap(client)
		default:
			c.logger.Infof("rpc: unknown capability type %v", desc.Which())
			return errUnimplemented
		}
	}
	return nil
}

// makeCapTable is the outbound cap encoder (spec.md §4.5). It walks
// seg's message's CapTable (already populated in insertion order as
// the caller built pointers) and classifies each client: a
// capability obtained from the remote vat is sent back as
// receiver_hosted; a capability backed by one of our own answers'
// pipelines is sent as receiver_answer; a pipeline client on one of
// our own outstanding questions is exported as sender_promise;
// anything else is exported fresh (or reuses its existing export id)
// as sender_hosted.
//
// It returns the encoded descriptor list plus the set of export ids
// referenced, for the caller to remember as resultCaps/paramCaps
// (released when the peer sends Finish/Return with
// release*Caps=true).
func (c *Conn) makeCapTable(s *capnp.Segment) (rpccapnp.CapDescriptorList, []exportID, error) {
	msg := s.Message()
	n := msg.CapTable.Len()
	t, err := rpccapnp.NewCapDescriptor_List(s, n)
	if err != nil {
		return rpccapnp.CapDescriptorList{}, nil, err
	}
	var exported []exportID
	for i := 0; i < n; i++ {
		client := msg.CapTable.At(capnp.CapabilityID(i))
		desc := t.At(i)
		if client == nil {
			desc.SetNone()
			continue
		}
		switch cl := client.(type) {
		case importClient:
			desc.SetReceiverHosted(uint32(cl.id))
		case answerPipelineClient:
			pa, err := desc.NewReceiverAnswer()
			if err != nil {
				return rpccapnp.CapDescriptorList{}, nil, err
			}
			pa.SetQuestionId(uint32(cl.id))
			if err := transformToPromisedAnswer(s, pa, cl.transform); err != nil {
				return rpccapnp.CapDescriptorList{}, nil, err
			}
		default:
			var id exportID
			var addErr error
			isPromise := false
			if pcc, ok := client.(capnp.PipelineClientCaller); ok {
				if q, ok := pcc.PipelineCaller().(*question); ok {
					id, addErr = c.addPromiseExport(q)
					isPromise = true
				} else {
					id, addErr = c.addExport(client)
				}
			} else {
				id, addErr = c.addExport(client)
			}
			if addErr != nil {
				return rpccapnp.CapDescriptorList{}, nil, addErr
			}
			if id > exportID(capnp.MaxCapabilityID) {
				return rpccapnp.CapDescriptorList{}, nil, ErrCapabilityIdTooLarge
			}
			if isPromise {
				desc.SetSenderPromise(uint32(id))
			} else {
				desc.SetSenderHosted(uint32(id))
			}
			exported = append(exported, id)
		}
	}
	return t, exported, nil
}

func transformToPromisedAnswer(s *capnp.Segment, pa rpccapnp.PromisedAnswer, transform []capnp.PipelineOp) error {
	opList, err := rpccapnp.NewPromisedAnswer_Op_List(s, len(transform))
	if err != nil {
		return err
	}
	for i, op := range transform {
		if op.Noop {
			opList.At(i).SetNoop()
			continue
		}
		opList.At(i).SetGetPointerField(op.Field)
	}
	return pa.SetTransform(opList)
}

func promisedAnswerOpsToTransform(list rpccapnp.PromisedAnswerOpList) []capnp.PipelineOp {
	n := list.Len()
	transform := make([]capnp.PipelineOp, 0, n)
	for i := 0; i < n; i++ {
		op := list.At(i)
		switch op.Which() {
		case rpccapnp.PromisedAnswer_Op_Which_getPointerField:
			transform = append(transform, capnp.PipelineOp{Field: op.GetPointerField()})
		case rpccapnp.PromisedAnswer_Op_Which_noop:
		}
	}
	return transform
}

// embedResult copies src into destSeg's message, carrying over the
// whole source capability table first so that capability pointers
// nested inside src (whose raw bits are an index into that table,
// see capnp.Copy) keep resolving correctly once relocated. When src is
// already part of destSeg's message the capability table is left
// as-is, but src is still copied into destSeg.
func embedResult(destSeg *capnp.Segment, src capnp.Ptr) (capnp.Ptr, error) {
	if !src.IsValid() {
		return capnp.Ptr{}, nil
	}
	destMsg := destSeg.Message()
	if srcSeg := src.Segment(); srcSeg != nil && srcSeg.Message() != destMsg {
		srcMsg := srcSeg.Message()
		for i := 0; i < srcMsg.CapTable.Len(); i++ {
			destMsg.AddCap(srcMsg.CapTable.At(capnp.CapabilityID(i)))
		}
	}
	return capnp.Copy(destSeg, src)
}

// clientFromResolution retrieves a client from a resolved question or
// answer by applying a transform, per spec.md §4.6.
func clientFromResolution(transform []capnp.PipelineOp, obj capnp.Ptr, err error) capnp.Client {
	if err != nil {
		return capnp.ErrorClient(err)
	}
	out, err := capnp.TransformPtr(obj, transform)
	if err != nil {
		return capnp.ErrorClient(err)
	}
	if !out.InterfaceValid() {
		return capnp.ErrorClient(capnp.ErrNullClient)
	}
	seg := out.Segment()
	if seg == nil {
		return capnp.ErrorClient(capnp.ErrNullClient)
	}
	return out.Client(seg.Message())
}
